package capsule

import (
	"context"
	"log/slog"
	"time"

	"github.com/sealpost/core/pkg/attachseal"
	"github.com/sealpost/core/pkg/blob"
	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/parser"
)

// Parser is the slice of the parser client the ingestor needs.
type Parser interface {
	Parse(ctx context.Context, attachmentID string, payload []byte, dpi int) (*parser.Result, error)
}

// Ingestor runs an attachment through sealing, blob storage, and the
// parser collaborator. The raw original is sealed before it enters blob
// storage; the capsule carries refs and hashes only.
type Ingestor struct {
	sealer  *attachseal.Sealer
	blobs   blob.Store
	parser  Parser
	timeout time.Duration
	logger  *slog.Logger
}

// NewIngestor creates an ingestor. The parser may be nil, in which case
// attachments stay unextracted.
func NewIngestor(sealer *attachseal.Sealer, blobs blob.Store, p Parser) *Ingestor {
	return &Ingestor{
		sealer:  sealer,
		blobs:   blobs,
		parser:  p,
		timeout: parser.DefaultTimeout,
		logger:  slog.Default().With("component", "capsule"),
	}
}

// Ingest seals and stores the original, then asks the parser for extracted
// text and page previews. A contract violation aborts the ingest; any other
// parser failure degrades to an unextracted attachment.
func (ing *Ingestor) Ingest(ctx context.Context, att contracts.CapsuleAttachment, data []byte) (contracts.CapsuleAttachment, error) {
	sealed, err := ing.sealer.Seal(att.ID, data)
	if err != nil {
		return contracts.CapsuleAttachment{}, err
	}
	ref, err := ing.blobs.Put(ctx, sealed)
	if err != nil {
		return contracts.CapsuleAttachment{}, err
	}
	att.EncryptedRef = ref
	// The hash covers the sealed bytes, matching what blob storage holds.
	// The plaintext original is never fingerprinted outside the capsule.
	att.EncryptedHash = blob.Ref(sealed)

	if ing.parser == nil {
		return att, nil
	}

	parseCtx, cancel := context.WithTimeout(ctx, ing.timeout)
	defer cancel()
	result, err := ing.parser.Parse(parseCtx, att.ID, data, parser.DefaultDPI)
	if err != nil {
		if contracts.IsContractViolation(err) {
			return contracts.CapsuleAttachment{}, err
		}
		ing.logger.Warn("parser unavailable, attachment stays unextracted",
			"attachment_id", att.ID, "error", err)
		return att, nil
	}

	att.SemanticContent = result.Text
	att.Extracted = result.Extracted
	if len(result.Pages) > 0 {
		previewRef, err := ing.blobs.Put(ctx, result.Pages[0].Data)
		if err != nil {
			return contracts.CapsuleAttachment{}, err
		}
		att.PreviewRef = previewRef
		att.PreviewHash = result.Pages[0].Hash
	}
	return att, nil
}
