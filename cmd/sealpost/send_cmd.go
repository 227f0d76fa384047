package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/sealpost/core/pkg/config"
	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/dispatch"
)

func runSendCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("send", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		method      string
		to          string
		text        string
		dataRequest string
		boundary    bool
		jsonOutput  bool
		attachments []string
	)
	cmd.StringVar(&method, "method", "chat", "Delivery method (mail|messenger|download|chat)")
	cmd.StringVar(&to, "to", "", "Recipient address for mail delivery")
	cmd.StringVar(&text, "text", "", "Message text")
	cmd.StringVar(&dataRequest, "data-request", "", "Structured data request to include")
	cmd.BoolVar(&boundary, "boundary", false, "Mark the boundary declaration as explicitly reviewed")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	cmd.Func("attach", "Attachment file path (repeatable)", func(path string) error {
		attachments = append(attachments, path)
		return nil
	})

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer eng.close()

	eng.builder.SetText(text)
	if dataRequest != "" {
		eng.builder.SetDataRequest(dataRequest)
	}
	for _, path := range attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading attachment: %v\n", err)
			return 1
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		if _, err := eng.builder.AddAttachment(ctx, filepath.Base(path), mimeType, data); err != nil {
			fmt.Fprintf(stderr, "Error ingesting attachment: %v\n", err)
			return 1
		}
	}

	req := dispatch.Request{
		Method:          contracts.DeliveryMethod(method),
		BoundaryInvoked: boundary,
	}
	if to != "" {
		req.Config = map[string]string{"to": to}
	}

	result, err := eng.pipeline.Dispatch(ctx, req)
	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else if err != nil {
		fmt.Fprintf(stderr, "Send failed: %v\n", err)
	} else {
		fmt.Fprintf(stdout, "Sent: entry=%s status=%s envelope=%s\n",
			result.EntryID, result.DeliveryStatus, result.EnvelopeID)
	}
	if err != nil {
		return 1
	}
	return 0
}
