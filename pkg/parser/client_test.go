package parser

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealpost/core/pkg/contracts"
)

type wirePage struct {
	MimeType      string `json:"mime_type"`
	Hash          string `json:"hash"`
	Base64Payload string `json:"base64_payload"`
}

type wireResponse struct {
	AttachmentID  string     `json:"attachment_id"`
	Extracted     bool       `json:"extracted"`
	ExtractedText string     `json:"extracted_text,omitempty"`
	Pages         []wirePage `json:"pages"`
}

func pngPage(data []byte) wirePage {
	sum := sha256.Sum256(data)
	return wirePage{
		MimeType:      "image/png",
		Hash:          hex.EncodeToString(sum[:]),
		Base64Payload: base64.StdEncoding.EncodeToString(data),
	}
}

func serveResponse(t *testing.T, resp wireResponse) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.AttachmentID)
		require.NotEmpty(t, req.Base64Payload)
		require.Positive(t, req.DPI)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

func TestParseAcceptsConformingResponse(t *testing.T) {
	page := []byte("fake png bytes")
	c := serveResponse(t, wireResponse{
		AttachmentID:  "att-1",
		Extracted:     true,
		ExtractedText: "hello from the document",
		Pages:         []wirePage{pngPage(page)},
	})

	result, err := c.Parse(context.Background(), "att-1", []byte("original"), 0)
	require.NoError(t, err)
	assert.True(t, result.Extracted)
	assert.Equal(t, "hello from the document", result.Text)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, "image/png", result.Pages[0].MimeType)
	assert.Equal(t, page, result.Pages[0].Data)
}

func TestParseRejectsWrongMimeType(t *testing.T) {
	page := pngPage([]byte("jpeg actually"))
	page.MimeType = "image/jpeg"
	c := serveResponse(t, wireResponse{AttachmentID: "att-1", Extracted: true, Pages: []wirePage{page}})

	_, err := c.Parse(context.Background(), "att-1", []byte("original"), 150)
	require.Error(t, err)
	require.True(t, contracts.IsContractViolation(err))
	var cv *contracts.ContractViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, 1, cv.Page)
	assert.Contains(t, cv.Detail, "image/png")
}

func TestParseRejectsUppercaseHash(t *testing.T) {
	page := pngPage([]byte("png"))
	page.Hash = "ABCDEF" + page.Hash[6:]
	c := serveResponse(t, wireResponse{AttachmentID: "att-1", Extracted: true, Pages: []wirePage{page}})

	_, err := c.Parse(context.Background(), "att-1", []byte("original"), 150)
	require.True(t, contracts.IsContractViolation(err))
}

func TestParseRejectsDataURLPayload(t *testing.T) {
	page := pngPage([]byte("png"))
	page.Base64Payload = "data:image/png;base64," + page.Base64Payload
	c := serveResponse(t, wireResponse{AttachmentID: "att-1", Extracted: true, Pages: []wirePage{page}})

	_, err := c.Parse(context.Background(), "att-1", []byte("original"), 150)
	require.True(t, contracts.IsContractViolation(err))
	var cv *contracts.ContractViolation
	require.ErrorAs(t, err, &cv)
	assert.Contains(t, cv.Detail, "data URL")
}

func TestParseRejectsHashMismatch(t *testing.T) {
	page := pngPage([]byte("png"))
	sum := sha256.Sum256([]byte("different bytes"))
	page.Hash = hex.EncodeToString(sum[:])
	c := serveResponse(t, wireResponse{AttachmentID: "att-1", Extracted: true, Pages: []wirePage{page}})

	_, err := c.Parse(context.Background(), "att-1", []byte("original"), 150)
	require.True(t, contracts.IsContractViolation(err))
}

func TestParseRejectsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pages": []}`))
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Parse(context.Background(), "att-1", []byte("original"), 150)
	require.True(t, contracts.IsContractViolation(err))
}

func TestParseRejectsMismatchedAttachmentID(t *testing.T) {
	c := serveResponse(t, wireResponse{AttachmentID: "att-other", Extracted: false})
	_, err := c.Parse(context.Background(), "att-1", []byte("original"), 150)
	require.True(t, contracts.IsContractViolation(err))
}

func TestParseSurfacesCollaboratorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Parse(context.Background(), "att-1", []byte("original"), 150)
	require.Error(t, err)
	assert.False(t, contracts.IsContractViolation(err))
}
