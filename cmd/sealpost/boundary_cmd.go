package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sealpost/core/pkg/boundary"
	"github.com/sealpost/core/pkg/config"
	"github.com/sealpost/core/pkg/contracts"
)

func runBoundaryCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		args = []string{"show"}
	}

	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer eng.close()

	switch args[0] {
	case "show":
		decl := eng.model.Snapshot()
		fmt.Fprintf(stdout, "Egress:  %s\n", boundary.SummarizeEgress(decl.Egress))
		fmt.Fprintf(stdout, "Ingress: %s\n", boundary.SummarizeIngress(decl.Ingress))
		if decl.IsDefault {
			fmt.Fprintln(stdout, "Declaration: default (never explicitly set)")
		} else {
			fmt.Fprintf(stdout, "Declaration: set, last modified %s\n",
				decl.LastModified.Format("2006-01-02 15:04:05"))
		}
		return 0

	case "egress":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: sealpost boundary egress <none|local_only|allowlisted|unrestricted>")
			return 2
		}
		if err := eng.model.SetEgressPreset(contracts.EgressPreset(args[1])); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return persistBoundary(ctx, eng, stdout, stderr)

	case "ingress":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: sealpost boundary ingress <capsule_only|session_derived|allowlisted>")
			return 2
		}
		if err := eng.model.SetIngressPreset(contracts.IngressPreset(args[1])); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return persistBoundary(ctx, eng, stdout, stderr)

	case "allow-egress":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: sealpost boundary allow-egress <destination>")
			return 2
		}
		id, err := eng.model.AddEgressDestination(args[1], "domain", "")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Added destination %s (%s)\n", args[1], id)
		return persistBoundary(ctx, eng, stdout, stderr)

	case "offline":
		eng.model.SetOfflineOnly(true)
		return persistBoundary(ctx, eng, stdout, stderr)

	default:
		fmt.Fprintf(stderr, "Unknown boundary subcommand: %s\n", args[0])
		return 2
	}
}

func persistBoundary(ctx context.Context, eng *engine, stdout, stderr io.Writer) int {
	if err := eng.model.Persist(ctx, eng.kv); err != nil {
		fmt.Fprintf(stderr, "Error persisting declaration: %v\n", err)
		return 1
	}
	decl := eng.model.Snapshot()
	fmt.Fprintf(stdout, "Egress:  %s\n", boundary.SummarizeEgress(decl.Egress))
	fmt.Fprintf(stdout, "Ingress: %s\n", boundary.SummarizeIngress(decl.Ingress))
	return 0
}
