package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sealpost/core/pkg/blob"
	"github.com/sealpost/core/pkg/contracts"
)

// HTTPSender posts the request to a collaborator webhook. Mail and
// messenger bridges both speak this shape.
type HTTPSender struct {
	method     contracts.DeliveryMethod
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSender creates a webhook sender for the given method.
func NewHTTPSender(method contracts.DeliveryMethod, endpoint string) *HTTPSender {
	return &HTTPSender{
		method:     method,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient overrides the HTTP client, for tests.
func (s *HTTPSender) WithHTTPClient(c *http.Client) *HTTPSender {
	s.httpClient = c
	return s
}

func (s *HTTPSender) Method() contracts.DeliveryMethod { return s.method }

func (s *HTTPSender) Send(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal transport request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build transport request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("collaborator unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			Status: contracts.StatusFailed,
			Error:  fmt.Sprintf("collaborator returned status %d", resp.StatusCode),
		}, nil
	}

	var wire struct {
		MessageID string `json:"message_id"`
	}
	_ = json.Unmarshal(respBody, &wire)
	return Result{Success: true, Status: contracts.StatusSent, ArtifactRef: wire.MessageID}, nil
}

// DownloadSender materializes a download bundle into blob storage and hands
// the rest to the user: the entry stays pending_user_action until they
// confirm the manual send.
type DownloadSender struct {
	blobs blob.Store
}

// NewDownloadSender creates a download bundler on the given blob store.
func NewDownloadSender(blobs blob.Store) *DownloadSender {
	return &DownloadSender{blobs: blobs}
}

func (s *DownloadSender) Method() contracts.DeliveryMethod { return contracts.DeliveryDownload }

func (s *DownloadSender) Send(ctx context.Context, req Request) (Result, error) {
	bundle, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal download bundle: %w", err)
	}
	ref, err := s.blobs.Put(ctx, bundle)
	if err != nil {
		return Result{}, fmt.Errorf("store download bundle: %w", err)
	}
	return Result{Success: true, Status: contracts.StatusPendingUserAction, ArtifactRef: ref}, nil
}

// ChatSender represents in-conversation delivery: the content is already
// where it needs to be, so the send is complete the moment it is recorded.
type ChatSender struct{}

func (ChatSender) Method() contracts.DeliveryMethod { return contracts.DeliveryChat }

func (ChatSender) Send(_ context.Context, _ Request) (Result, error) {
	return Result{Success: true, Status: contracts.StatusSentChat}, nil
}
