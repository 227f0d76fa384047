// Package isolation enforces the transport-isolation invariant: extracted
// attachment content is capsule-bound and must never appear in
// transport-facing text. The guard runs synchronously before every
// transport call and aborts the send with a SecurityViolation on breach.
package isolation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sealpost/core/pkg/audit"
	"github.com/sealpost/core/pkg/contracts"
)

const (
	// minContentLength is the shortest extracted content the containment
	// check considers. Shorter fragments are too likely to occur in
	// ordinary prose to be meaningful leak evidence.
	minContentLength = 50
	// sampleLength is how much of the leading extracted content is matched
	// against the transport text.
	sampleLength = 500
)

// Guard checks transport-facing text against capsule-scope content.
type Guard struct {
	auditLog audit.Logger
	logger   *slog.Logger
}

// NewGuard creates a guard.
func NewGuard(auditLog audit.Logger) *Guard {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &Guard{
		auditLog: auditLog,
		logger:   slog.Default().With("component", "isolation"),
	}
}

// Check verifies that no attachment's extracted content leaks into the
// transport-facing text. On breach it records an audit event and returns a
// SecurityViolation naming the attachment by id only; the leaked content
// itself never reaches logs or the error message.
func (g *Guard) Check(ctx context.Context, transportText string, capsule *contracts.Capsule) error {
	if capsule == nil || transportText == "" {
		return nil
	}
	normalizedText := normalize(transportText)

	for _, att := range capsule.Attachments {
		content := strings.TrimSpace(att.SemanticContent)
		if len(content) < minContentLength {
			continue
		}
		sample := content
		if len(sample) > sampleLength {
			sample = sample[:sampleLength]
		}
		if strings.Contains(normalizedText, normalize(sample)) {
			g.logger.Error("transport isolation breach",
				"attachment_id", att.ID,
				"content_length", len(content),
			)
			_ = g.auditLog.Record(ctx, audit.EventViolation, "transport_isolation", att.ID, map[string]any{
				"capsule_id":     capsule.CapsuleID,
				"content_length": len(content),
			})
			return &contracts.SecurityViolation{
				Check:  "transport_isolation",
				Detail: fmt.Sprintf("extracted content of attachment %s present in transport text", att.ID),
			}
		}
	}
	return nil
}

// normalize collapses whitespace so that reflowed copies of the same
// content still match.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
