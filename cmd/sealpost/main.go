package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sealpost/core/pkg/config"

	_ "github.com/lib/pq" // Postgres driver
)

const version = "1.0.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 0
	}

	cfg := config.Load()
	setupLogging(cfg, stderr)

	switch args[1] {
	case "send":
		return runSendCmd(args[2:], cfg, stdout, stderr)
	case "outbox":
		return runOutboxCmd(args[2:], cfg, stdout, stderr)
	case "boundary":
		return runBoundaryCmd(args[2:], cfg, stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(cfg, stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "sealpost %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func setupLogging(cfg *config.Config, stderr io.Writer) {
	level := slog.LevelInfo
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "sealpost %s\n", version)
	fmt.Fprintln(w, "Consent-boundary engine for outbound messages.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  sealpost <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	printCommand(w, "send", "Dispatch a message through the consent pipeline")
	printCommand(w, "outbox", "Inspect and drive outbox entries (list/show/retry/confirm)")
	printCommand(w, "boundary", "Show or edit the boundary declaration")
	printCommand(w, "validate", "Validate an envelope document (--envelope, --json)")
	printCommand(w, "doctor", "Check configuration and collaborator reachability")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-10s %s\n", name, desc)
}
