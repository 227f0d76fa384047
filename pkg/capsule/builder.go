// Package capsule manages the editable task payload. A builder accumulates
// text, attachments, session references, and a data request; every mutation
// re-derives the capability needs and escalates missing grants to the
// envelope generator. Commit freezes the draft into an immutable capsule.
// Editing never regenerates an envelope by itself.
package capsule

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealpost/core/pkg/capability"
	"github.com/sealpost/core/pkg/contracts"
)

// BoundaryView exposes the declared boundary to capability derivation.
type BoundaryView interface {
	Snapshot() contracts.BoundaryDeclaration
}

// Escalator receives capability needs the current envelope does not cover.
// The envelope generator implements this.
type Escalator interface {
	QueueCapabilities(caps contracts.CapabilitySet)
	Current() *contracts.Envelope
	PendingCapabilities() contracts.CapabilitySet
	RequiresRegeneration() bool
}

// Builder is the mutable capsule draft. All methods are safe for
// concurrent use.
type Builder struct {
	mu          sync.Mutex
	text        string
	attachments []contracts.CapsuleAttachment
	sessions    []contracts.CapsuleSessionRef
	dataRequest string

	boundary  BoundaryView
	escalator Escalator
	ingestor  *Ingestor
	logger    *slog.Logger
	clock     func() time.Time
}

// NewBuilder creates a builder wired to the boundary and the generator.
func NewBuilder(boundary BoundaryView, escalator Escalator) *Builder {
	return &Builder{
		boundary:  boundary,
		escalator: escalator,
		logger:    slog.Default().With("component", "capsule"),
		clock:     time.Now,
	}
}

// WithIngestor installs the attachment ingestion pipeline.
func (b *Builder) WithIngestor(ing *Ingestor) *Builder {
	b.ingestor = ing
	return b
}

// WithClock overrides the clock for deterministic tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// SetText replaces the draft text.
func (b *Builder) SetText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	b.reconcile()
}

// SetDataRequest replaces the structured data request.
func (b *Builder) SetDataRequest(request string) {
	b.mu.Lock()
	b.dataRequest = request
	b.mu.Unlock()
	b.reconcile()
}

// AddSessionRef attaches a session reference to the draft.
func (b *Builder) AddSessionRef(ref contracts.CapsuleSessionRef) {
	b.mu.Lock()
	b.sessions = append(b.sessions, ref)
	b.mu.Unlock()
	b.reconcile()
}

// RemoveSessionRef removes a session reference by id. Removal never shrinks
// already-queued capabilities; only a fresh envelope narrows grants.
func (b *Builder) RemoveSessionRef(sessionID string) {
	b.mu.Lock()
	kept := b.sessions[:0]
	for _, s := range b.sessions {
		if s.SessionID != sessionID {
			kept = append(kept, s)
		}
	}
	b.sessions = kept
	b.mu.Unlock()
	b.reconcile()
}

// AddAttachment ingests a file through the sealing and parsing pipeline and
// adds it to the draft. Contract violations from the parser abort the add;
// an unreachable parser degrades to an unextracted attachment.
func (b *Builder) AddAttachment(ctx context.Context, name, mimeType string, data []byte) (contracts.CapsuleAttachment, error) {
	att := contracts.CapsuleAttachment{
		ID:       uuid.New().String(),
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
	}
	if b.ingestor != nil {
		ingested, err := b.ingestor.Ingest(ctx, att, data)
		if err != nil {
			return contracts.CapsuleAttachment{}, err
		}
		att = ingested
	}

	b.mu.Lock()
	b.attachments = append(b.attachments, att)
	b.mu.Unlock()
	b.reconcile()
	return att, nil
}

// RemoveAttachment removes an attachment by id.
func (b *Builder) RemoveAttachment(attachmentID string) {
	b.mu.Lock()
	kept := b.attachments[:0]
	for _, a := range b.attachments {
		if a.ID != attachmentID {
			kept = append(kept, a)
		}
	}
	b.attachments = kept
	b.mu.Unlock()
	b.reconcile()
}

// Signals returns the derivation inputs of the current draft.
func (b *Builder) Signals() capability.CapsuleSignals {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signalsLocked()
}

func (b *Builder) signalsLocked() capability.CapsuleSignals {
	return capability.CapsuleSignals{
		AttachmentCount: len(b.attachments),
		Sessions:        append([]contracts.CapsuleSessionRef(nil), b.sessions...),
		DataRequest:     b.dataRequest,
	}
}

// SessionRefs returns the draft's session references with EnvelopeSupports
// recomputed against the current-plus-pending capability set. The flag is
// never cached.
func (b *Builder) SessionRefs() []contracts.CapsuleSessionRef {
	effective := b.effectiveCapabilities()

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.CapsuleSessionRef, len(b.sessions))
	for i, s := range b.sessions {
		s.EnvelopeSupports = capability.SupportsSession(effective, s)
		out[i] = s
	}
	return out
}

// Attachments returns a copy of the draft attachments.
func (b *Builder) Attachments() []contracts.CapsuleAttachment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]contracts.CapsuleAttachment(nil), b.attachments...)
}

// Text returns the draft text.
func (b *Builder) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// DataRequest returns the draft data request.
func (b *Builder) DataRequest() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataRequest
}

// Commit validates and freezes the draft into an immutable capsule with a
// fresh id. The second return reports whether the envelope still required
// regeneration at commit time. The builder stays editable; committing never
// regenerates the envelope.
func (b *Builder) Commit() (*contracts.Capsule, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if strings.TrimSpace(b.text) == "" && len(b.attachments) == 0 {
		return nil, false, contracts.NewValidationError("content", "content_required",
			"Message content or attachments required")
	}
	stale := b.escalator.RequiresRegeneration()

	capsule := &contracts.Capsule{
		FormatVersion: contracts.CapsuleFormatVersion,
		CapsuleID:     uuid.New().String(),
		Text:          b.text,
		Attachments:   append([]contracts.CapsuleAttachment(nil), b.attachments...),
		SessionRefs:   append([]contracts.CapsuleSessionRef(nil), b.sessions...),
		DataRequest:   b.dataRequest,
		CreatedAt:     b.clock().UTC(),
	}
	b.logger.Info("capsule committed",
		"capsule_id", capsule.CapsuleID,
		"attachments", len(capsule.Attachments),
		"sessions", len(capsule.SessionRefs),
		"envelope_stale", stale,
	)
	return capsule, stale, nil
}

// reconcile re-derives the draft's capability needs and escalates anything
// the current-plus-pending envelope state does not cover.
func (b *Builder) reconcile() {
	b.mu.Lock()
	signals := b.signalsLocked()
	b.mu.Unlock()

	needed := capability.Derive(b.boundary.Snapshot(), signals)
	effective := b.effectiveCapabilities()
	missing := needed.Missing(effective)
	if len(missing) == 0 {
		return
	}
	b.escalator.QueueCapabilities(contracts.NewCapabilitySet(missing...))
	b.logger.Debug("capability escalation queued", "missing", missing)
}

func (b *Builder) effectiveCapabilities() contracts.CapabilitySet {
	effective := b.escalator.PendingCapabilities()
	if env := b.escalator.Current(); env != nil {
		effective = effective.Union(env.Capabilities)
	}
	return effective
}
