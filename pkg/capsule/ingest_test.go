package capsule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealpost/core/pkg/attachseal"
	"github.com/sealpost/core/pkg/blob"
	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/parser"
)

type fakeParser struct {
	result *parser.Result
	err    error
}

func (f *fakeParser) Parse(_ context.Context, attachmentID string, _ []byte, _ int) (*parser.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.AttachmentID = attachmentID
	return &r, nil
}

func newTestIngestor(t *testing.T, p Parser) (*Ingestor, blob.Store) {
	t.Helper()
	key, err := attachseal.GenerateKey()
	require.NoError(t, err)
	sealer, err := attachseal.NewSealer(key)
	require.NoError(t, err)
	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewIngestor(sealer, blobs, p), blobs
}

func TestIngestSealsOriginalAndStoresPreview(t *testing.T) {
	pageData := []byte("rendered page one")
	pageSum := sha256.Sum256(pageData)
	ing, blobs := newTestIngestor(t, &fakeParser{result: &parser.Result{
		Extracted: true,
		Text:      "extracted document text",
		Pages:     []parser.Page{{MimeType: "image/png", Hash: hex.EncodeToString(pageSum[:]), Data: pageData}},
	}})

	original := []byte("raw original bytes")
	att, err := ing.Ingest(context.Background(), contracts.CapsuleAttachment{ID: "att-1", Name: "doc.pdf"}, original)
	require.NoError(t, err)

	assert.True(t, att.Extracted)
	assert.Equal(t, "extracted document text", att.SemanticContent)
	assert.Equal(t, hex.EncodeToString(pageSum[:]), att.PreviewHash)

	// The stored blob is the sealed form, never the original, and the
	// recorded hash fingerprints the sealed bytes.
	stored, err := blobs.Get(context.Background(), att.EncryptedRef)
	require.NoError(t, err)
	assert.NotEqual(t, original, stored)
	assert.Equal(t, blob.Ref(stored), att.EncryptedHash)
	assert.NotEqual(t, blob.Ref(original), att.EncryptedHash, "plaintext is never fingerprinted")
	assert.NotEqual(t, blob.Ref(original), att.EncryptedRef)

	preview, err := blobs.Get(context.Background(), att.PreviewRef)
	require.NoError(t, err)
	assert.Equal(t, pageData, preview)
}

func TestIngestDegradesWhenParserUnavailable(t *testing.T) {
	ing, _ := newTestIngestor(t, &fakeParser{err: errors.New("connection refused")})

	att, err := ing.Ingest(context.Background(), contracts.CapsuleAttachment{ID: "att-1"}, []byte("data"))
	require.NoError(t, err)
	assert.False(t, att.Extracted)
	assert.Empty(t, att.SemanticContent)
	assert.NotEmpty(t, att.EncryptedRef, "sealing still happens without the parser")
}

func TestIngestSurfacesContractViolations(t *testing.T) {
	ing, _ := newTestIngestor(t, &fakeParser{err: &contracts.ContractViolation{
		Collaborator: parser.CollaboratorName, Page: 2, Detail: "mime_type must be exactly \"image/png\"",
	}})

	_, err := ing.Ingest(context.Background(), contracts.CapsuleAttachment{ID: "att-1"}, []byte("data"))
	require.Error(t, err)
	assert.True(t, contracts.IsContractViolation(err))
}

func TestIngestWithoutParser(t *testing.T) {
	ing, _ := newTestIngestor(t, nil)
	att, err := ing.Ingest(context.Background(), contracts.CapsuleAttachment{ID: "att-1"}, []byte("data"))
	require.NoError(t, err)
	assert.False(t, att.Extracted)
	assert.NotEmpty(t, att.EncryptedRef)
}
