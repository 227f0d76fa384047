// Package parser talks to the external parser/rasterizer collaborator that
// turns attachment originals into extracted text and rendered page images.
//
// The collaborator is untrusted: every response is validated against a JSON
// schema and the raster contract before anything it returns is used. Any
// breach surfaces as a ContractViolation with page context; nothing
// malformed is patched up silently.
package parser

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sealpost/core/pkg/contracts"
)

func violation(page int, detail string) error {
	return &contracts.ContractViolation{Collaborator: CollaboratorName, Page: page, Detail: detail}
}

// CollaboratorName tags contract violations from this collaborator.
const CollaboratorName = "parser"

// DefaultTimeout bounds a single collaborator call.
const DefaultTimeout = 5 * time.Second

// DefaultDPI is the raster density requested when the caller does not care.
const DefaultDPI = 150

var hexHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// responseSchema is the structural contract of a parse response. Semantic
// raster checks (exact mime, hash integrity, no data-URL prefix) run after
// schema validation.
const responseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["attachment_id", "extracted", "pages"],
	"properties": {
		"attachment_id": {"type": "string", "minLength": 1},
		"extracted": {"type": "boolean"},
		"extracted_text": {"type": "string"},
		"pages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["mime_type", "hash", "base64_payload"],
				"properties": {
					"mime_type": {"type": "string"},
					"hash": {"type": "string"},
					"base64_payload": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// Request is the wire request to the collaborator.
type Request struct {
	AttachmentID  string `json:"attachment_id"`
	Base64Payload string `json:"base64_payload"`
	DPI           int    `json:"dpi"`
}

// Page is one validated rendered page.
type Page struct {
	MimeType string
	Hash     string
	Data     []byte
}

// Result is a fully validated parse response.
type Result struct {
	AttachmentID string
	Extracted    bool
	Text         string
	Pages        []Page
}

// Client calls the parser/rasterizer over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	schema     *jsonschema.Schema
	logger     *slog.Logger
}

// NewClient creates a client for the collaborator at baseURL.
func NewClient(baseURL string) (*Client, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://sealpost.schemas.local/parser/response.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("parser schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("parser schema compile failed: %w", err)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		schema:     compiled,
		logger:     slog.Default().With("component", "parser"),
	}, nil
}

// WithHTTPClient overrides the HTTP client, for tests and custom transports.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

// Parse submits an attachment payload and returns the validated result.
func (c *Client) Parse(ctx context.Context, attachmentID string, payload []byte, dpi int) (*Result, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	body, err := json.Marshal(Request{
		AttachmentID:  attachmentID,
		Base64Payload: base64.StdEncoding.EncodeToString(payload),
		DPI:           dpi,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/parse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parser unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read parser response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("parser returned status %d", resp.StatusCode)
	}

	result, err := c.decode(attachmentID, raw)
	if err != nil {
		c.logger.Warn("parser response rejected", "attachment_id", attachmentID, "error", err)
		return nil, err
	}
	return result, nil
}

// decode validates the raw response against the schema and the raster
// contract, then decodes the pages.
func (c *Client) decode(attachmentID string, raw []byte) (*Result, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, violation(0, fmt.Sprintf("response is not valid JSON: %v", err))
	}
	if err := c.schema.Validate(generic); err != nil {
		return nil, violation(0, fmt.Sprintf("response schema validation failed: %v", err))
	}

	var wire struct {
		AttachmentID  string `json:"attachment_id"`
		Extracted     bool   `json:"extracted"`
		ExtractedText string `json:"extracted_text"`
		Pages         []struct {
			MimeType      string `json:"mime_type"`
			Hash          string `json:"hash"`
			Base64Payload string `json:"base64_payload"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, violation(0, fmt.Sprintf("response decode failed: %v", err))
	}
	if wire.AttachmentID != attachmentID {
		return nil, violation(0, fmt.Sprintf("response is for attachment %q, requested %q", wire.AttachmentID, attachmentID))
	}

	result := &Result{
		AttachmentID: wire.AttachmentID,
		Extracted:    wire.Extracted,
		Text:         wire.ExtractedText,
	}
	for i, p := range wire.Pages {
		pageNum := i + 1
		if p.MimeType != "image/png" {
			return nil, violation(pageNum, fmt.Sprintf("mime_type must be exactly \"image/png\", got %q", p.MimeType))
		}
		if !hexHashPattern.MatchString(p.Hash) {
			return nil, violation(pageNum, fmt.Sprintf("hash must be 64 lowercase hex characters, got %q", p.Hash))
		}
		if strings.HasPrefix(p.Base64Payload, "data:") {
			return nil, violation(pageNum, "payload must be raw base64, not a data URL")
		}
		data, err := base64.StdEncoding.DecodeString(p.Base64Payload)
		if err != nil {
			return nil, violation(pageNum, fmt.Sprintf("payload is not valid base64: %v", err))
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != p.Hash {
			return nil, violation(pageNum, "payload hash does not match declared hash")
		}
		result.Pages = append(result.Pages, Page{MimeType: p.MimeType, Hash: p.Hash, Data: data})
	}
	return result, nil
}
