package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/envelope"
)

func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		envelopePath string
		jsonOutput   bool
	)
	cmd.StringVar(&envelopePath, "envelope", "", "Path to an envelope JSON document (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if envelopePath == "" {
		fmt.Fprintln(stderr, "Error: --envelope is required")
		cmd.Usage()
		return 2
	}

	data, err := os.ReadFile(envelopePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading envelope: %v\n", err)
		return 1
	}
	var env contracts.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		fmt.Fprintf(stderr, "Error parsing envelope: %v\n", err)
		return 1
	}

	result := envelope.NewValidator().Validate(&env)

	if jsonOutput {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(stdout, string(out))
	} else if result.Valid {
		fmt.Fprintf(stdout, "Envelope %s is valid (hash %s)\n", env.EnvelopeID, result.Hash)
	} else {
		fmt.Fprintf(stdout, "Envelope %s is invalid:\n", env.EnvelopeID)
		for _, e := range result.Errors {
			fmt.Fprintf(stdout, "  - %s\n", e)
		}
	}

	if !result.Valid {
		return 1
	}
	return 0
}
