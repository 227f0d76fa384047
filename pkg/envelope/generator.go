// Package envelope produces and validates Consent Envelopes, the
// immutable, versioned capability ceilings bound to every send.
//
// The generator is the only writer of envelope state. An envelope is never
// mutated: every boundary or capability change queues pending state, and
// regeneration synthesizes a successor with a fresh id and nonce. While a
// regeneration is awaiting the identity collaborator, edits keep being
// accepted and queued; a follow-up regeneration runs once the in-flight
// one completes.
package envelope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealpost/core/pkg/audit"
	"github.com/sealpost/core/pkg/canonicalize"
	"github.com/sealpost/core/pkg/capability"
	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/crypto"
	"github.com/sealpost/core/pkg/identity"
)

// DefaultConsentLifetime is the validity window of a new envelope.
const DefaultConsentLifetime = 7 * 24 * time.Hour

// ErrRegenerationInFlight is returned when a regeneration is already
// running; the in-flight run picks up all queued state, so the caller has
// nothing further to do.
var ErrRegenerationInFlight = errors.New("envelope regeneration already in flight")

// Generator owns the current envelope and all pending state.
type Generator struct {
	mu              sync.Mutex
	current         *contracts.Envelope
	pendingCaps     contracts.CapabilitySet
	pendingNet      contracts.NetworkConstraintsPatch
	requiresRegen   bool
	regenerating    bool
	followUp        bool
	generationCount int64

	recipientFP string
	handshakeID string
	lifetime    time.Duration

	provider identity.Provider
	guard    ReplayGuard
	signer   crypto.Signer
	auditLog audit.Logger
	logger   *slog.Logger
	clock    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLifetime overrides the default 7-day consent lifetime.
func WithLifetime(d time.Duration) Option {
	return func(g *Generator) { g.lifetime = d }
}

// WithRecipient sets the recipient fingerprint carried by new envelopes.
func WithRecipient(fingerprint string) Option {
	return func(g *Generator) { g.recipientFP = fingerprint }
}

// WithHandshake sets the handshake id carried by new envelopes.
func WithHandshake(handshakeID string) Option {
	return func(g *Generator) { g.handshakeID = handshakeID }
}

// WithReplayGuard installs the nonce replay guard.
func WithReplayGuard(guard ReplayGuard) Option {
	return func(g *Generator) { g.guard = guard }
}

// WithSigner installs the envelope signer used at capsule binding.
func WithSigner(s crypto.Signer) Option {
	return func(g *Generator) { g.signer = s }
}

// WithAudit installs the audit logger.
func WithAudit(l audit.Logger) Option {
	return func(g *Generator) { g.auditLog = l }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) { g.clock = clock }
}

// NewGenerator creates a generator around an identity provider.
func NewGenerator(provider identity.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:    provider,
		pendingCaps: contracts.NewCapabilitySet(),
		lifetime:    DefaultConsentLifetime,
		guard:       NewMemoryReplayGuard(),
		auditLog:    audit.Nop(),
		logger:      slog.Default().With("component", "envelope"),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BoundaryChanged implements boundary.Notifier. Every boundary mutation
// queues the boundary's derived capabilities and network constraints and
// marks the envelope stale. Never rejected, even mid-regeneration.
func (g *Generator) BoundaryChanged(decl contracts.BoundaryDeclaration) {
	caps := capability.Derive(decl, capability.CapsuleSignals{})
	nc := capability.NetworkConstraintsFor(decl)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pendingCaps = g.pendingCaps.Union(caps)
	ingress := append([]string(nil), nc.AllowedIngress...)
	egress := append([]string(nil), nc.AllowedEgress...)
	offline := nc.OfflineOnly
	g.pendingNet = contracts.NetworkConstraintsPatch{
		AllowedIngress: &ingress,
		AllowedEgress:  &egress,
		OfflineOnly:    &offline,
	}
	g.markStaleLocked()
}

// QueueCapabilities adds capabilities to the pending set and marks the
// envelope stale. Capsule editing escalates through this path.
func (g *Generator) QueueCapabilities(caps contracts.CapabilitySet) {
	if len(caps) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pendingCaps = g.pendingCaps.Union(caps)
	g.markStaleLocked()
}

func (g *Generator) markStaleLocked() {
	g.requiresRegen = true
	if g.regenerating {
		g.followUp = true
	}
}

// RequiresRegeneration reports whether the current envelope is stale (or
// absent) and a regeneration must run before dispatch.
func (g *Generator) RequiresRegeneration() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current == nil || g.requiresRegen
}

// GenerationCount returns how many envelopes this generator has produced.
func (g *Generator) GenerationCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generationCount
}

// Current returns a copy of the current envelope, or nil before the first
// generation. The copy keeps callers from mutating shared state.
func (g *Generator) Current() *contracts.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneEnvelope(g.current)
}

// PendingCapabilities returns a copy of the queued capability set.
func (g *Generator) PendingCapabilities() contracts.CapabilitySet {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingCaps.Clone()
}

// Regenerate unions the pending capabilities into the existing envelope's
// set (capabilities never shrink implicitly), merges pending network
// constraints field by field, and synthesizes a successor envelope.
//
// The result is content-idempotent: regenerating twice with unchanged
// inputs yields envelopes equal in all fields except envelope_id, nonce,
// and created_at.
func (g *Generator) Regenerate(ctx context.Context) (*contracts.Envelope, error) {
	return g.regenerate(ctx, nil, nil)
}

// RegenerateFromContext synthesizes a successor deterministically from the
// live boundary and capsule signals. Dispatch uses this; it never reuses a
// stale envelope silently. An explicit regeneration from context is the one
// sanctioned way a successor's capability set may differ downward from its
// predecessor's.
func (g *Generator) RegenerateFromContext(ctx context.Context, decl contracts.BoundaryDeclaration, sig capability.CapsuleSignals) (*contracts.Envelope, error) {
	caps := capability.Derive(decl, sig)
	nc := capability.NetworkConstraintsFor(decl)
	return g.regenerate(ctx, caps, &nc)
}

func (g *Generator) regenerate(ctx context.Context, baseCaps contracts.CapabilitySet, baseNet *contracts.NetworkConstraints) (*contracts.Envelope, error) {
	g.mu.Lock()
	if g.regenerating {
		g.followUp = true
		g.mu.Unlock()
		return nil, ErrRegenerationInFlight
	}
	g.regenerating = true

	for {
		// Snapshot and consume pending state under the lock.
		var caps contracts.CapabilitySet
		var net contracts.NetworkConstraints
		if baseCaps != nil {
			caps = baseCaps.Union(g.pendingCaps)
		} else if g.current != nil {
			caps = g.current.Capabilities.Union(g.pendingCaps)
		} else {
			caps = g.pendingCaps.Clone()
		}
		if baseNet != nil {
			net = g.pendingNet.Apply(*baseNet)
		} else if g.current != nil {
			net = g.pendingNet.Apply(g.current.NetworkConstraints)
		} else {
			net = g.pendingNet.Apply(contracts.NetworkConstraints{})
		}
		consumedCaps := g.pendingCaps
		consumedNet := g.pendingNet
		g.pendingCaps = contracts.NewCapabilitySet()
		g.pendingNet = contracts.NetworkConstraintsPatch{}
		g.followUp = false
		g.mu.Unlock()

		// The only externally visible latency: the identity collaborator.
		env, err := g.synthesize(ctx, caps, net)
		if err != nil {
			// Re-queue the consumed state so nothing is lost; the envelope
			// stays stale and a later regeneration retries.
			g.mu.Lock()
			g.pendingCaps = g.pendingCaps.Union(consumedCaps)
			if g.pendingNet.Empty() {
				g.pendingNet = consumedNet
			}
			g.requiresRegen = true
			g.regenerating = false
			g.mu.Unlock()
			return nil, err
		}

		g.mu.Lock()
		g.current = env
		g.generationCount++
		g.requiresRegen = false
		if g.followUp {
			// Edits arrived while we were synthesizing; go around again so
			// the caller always observes a fresh envelope.
			continue
		}
		g.regenerating = false
		result := cloneEnvelope(g.current)
		count := g.generationCount
		g.mu.Unlock()

		g.logger.Info("envelope regenerated",
			"envelope_id", result.EnvelopeID,
			"generation", count,
			"capabilities", result.Capabilities.List(),
		)
		_ = g.auditLog.Record(ctx, audit.EventEnvelope, "regenerate", result.EnvelopeID, map[string]any{
			"generation":   count,
			"capabilities": result.Capabilities.List(),
		})
		return result, nil
	}
}

// synthesize builds a brand-new envelope. Identity fields are always fresh;
// attestation stays pending until the collaborator confirms otherwise.
func (g *Generator) synthesize(ctx context.Context, caps contracts.CapabilitySet, net contracts.NetworkConstraints) (*contracts.Envelope, error) {
	fingerprint, err := g.provider.SenderFingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("sender fingerprint unavailable: %w", err)
	}
	status := g.provider.Attestation(ctx)
	if !status.Valid() {
		status = contracts.AttestationPending
	}

	now := g.clock().UTC()
	return &contracts.Envelope{
		FormatVersion:        contracts.EnvelopeFormatVersion,
		EnvelopeID:           uuid.New().String(),
		SenderFingerprint:    fingerprint,
		RecipientFingerprint: g.recipientFP,
		HandshakeID:          g.handshakeID,
		HardwareAttestation:  status,
		CreatedAt:            now,
		ValidUntil:           now.Add(g.lifetime),
		Nonce:                uuid.New().String(),
		Capabilities:         caps.Clone(),
		NetworkConstraints:   net,
	}, nil
}

// Bind fills the envelope's capsule hash and signature for a frozen
// capsule. Binding completes the current envelope; it does not regenerate.
// The returned envelope is the one dispatch hands to the transport.
func (g *Generator) Bind(ctx context.Context, capsule *contracts.Capsule) (*contracts.Envelope, error) {
	capsuleHash, err := canonicalize.CanonicalHash(capsule)
	if err != nil {
		return nil, fmt.Errorf("capsule hash failed: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return nil, fmt.Errorf("no envelope generated")
	}
	if g.requiresRegen {
		return nil, fmt.Errorf("envelope %s is stale; regenerate before binding", g.current.EnvelopeID)
	}

	bound := cloneEnvelope(g.current)
	bound.CapsuleHash = capsuleHash
	capsule.Hash = capsuleHash

	if g.signer != nil {
		contentHash, err := ContentHash(bound)
		if err != nil {
			return nil, fmt.Errorf("envelope content hash failed: %w", err)
		}
		sig, err := g.signer.Sign([]byte(contentHash))
		if err != nil {
			return nil, fmt.Errorf("envelope signing failed: %w", err)
		}
		bound.Signature = sig
		bound.SignatureAlgorithm = g.signer.Algorithm()
		bound.SignerID = g.signer.KeyID()
	}

	g.current = bound
	return cloneEnvelope(bound), nil
}

// ConsumeNonce marks the envelope's single-use nonce as spent. Dispatch
// calls this exactly once per send; a second consumption fails.
func (g *Generator) ConsumeNonce(ctx context.Context, env *contracts.Envelope) error {
	return g.guard.Consume(ctx, env.Nonce)
}

func cloneEnvelope(e *contracts.Envelope) *contracts.Envelope {
	if e == nil {
		return nil
	}
	out := *e
	out.Capabilities = e.Capabilities.Clone()
	out.NetworkConstraints.AllowedIngress = append([]string(nil), e.NetworkConstraints.AllowedIngress...)
	out.NetworkConstraints.AllowedEgress = append([]string(nil), e.NetworkConstraints.AllowedEgress...)
	return &out
}
