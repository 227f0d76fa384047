package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sealpost/core/pkg/config"
)

func runOutboxCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: sealpost outbox <list|show|retry|confirm> [entry-id]")
		return 2
	}

	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer eng.close()

	switch args[0] {
	case "list":
		entries, err := eng.manager.List(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Fprintln(stdout, "Outbox is empty.")
			return 0
		}
		for _, e := range entries {
			fmt.Fprintf(stdout, "%s  %-9s  %-19s  attempts=%d\n",
				e.EntryID, e.Method, e.Status, len(e.Attempts))
		}
		return 0

	case "show":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: sealpost outbox show <entry-id>")
			return 2
		}
		entry, err := eng.manager.Get(ctx, args[1])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		data, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Fprintln(stdout, string(data))
		return 0

	case "retry":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: sealpost outbox retry <entry-id>")
			return 2
		}
		entry, err := eng.manager.Retry(ctx, args[1])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Entry %s re-queued (status %s).\n", entry.EntryID, entry.Status)
		return 0

	case "confirm":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: sealpost outbox confirm <entry-id>")
			return 2
		}
		entry, err := eng.manager.ConfirmManual(ctx, args[1])
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Entry %s confirmed (status %s).\n", entry.EntryID, entry.Status)
		return 0

	default:
		fmt.Fprintf(stderr, "Unknown outbox subcommand: %s\n", args[0])
		return 2
	}
}
