// Package dispatch runs the send pipeline: intent validation, the
// boundary-requirement check, envelope regeneration, capsule freeze and
// binding, then outbox recording and transport.
//
// Phase ordering is the integrity guarantee. Nothing is written to the
// outbox before the envelope and capsule are final, and once an entry
// exists it is never rolled back; failures from there on are recorded as
// delivery attempts.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sealpost/core/pkg/audit"
	"github.com/sealpost/core/pkg/boundary"
	"github.com/sealpost/core/pkg/capsule"
	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/envelope"
	"github.com/sealpost/core/pkg/isolation"
	"github.com/sealpost/core/pkg/observability"
	"github.com/sealpost/core/pkg/outbox"
	"github.com/sealpost/core/pkg/transport"
)

// Request describes one send.
type Request struct {
	Method contracts.DeliveryMethod `json:"method"`
	// Config is per-method delivery configuration (mail recipient,
	// messenger channel).
	Config map[string]string `json:"config,omitempty"`
	// BoundaryInvoked is true when the user explicitly opened the boundary
	// editor for this send.
	BoundaryInvoked bool `json:"boundary_invoked,omitempty"`
}

// Result is the structured outcome handed back to the caller.
type Result struct {
	Success        bool                     `json:"success"`
	Error          string                   `json:"error,omitempty"`
	DeliveryStatus contracts.DeliveryStatus `json:"delivery_status,omitempty"`
	EntryID        string                   `json:"entry_id,omitempty"`
	EnvelopeID     string                   `json:"envelope_id,omitempty"`
	CapsuleID      string                   `json:"capsule_id,omitempty"`
}

// Pipeline wires the collaborating components of one send path.
type Pipeline struct {
	boundary  *boundary.Model
	generator *envelope.Generator
	builder   *capsule.Builder
	guard     *isolation.Guard
	outbox    *outbox.Manager
	registry  *transport.Registry
	auditLog  audit.Logger
	obs       *observability.Provider
	logger    *slog.Logger
}

// NewPipeline assembles a pipeline.
func NewPipeline(
	model *boundary.Model,
	generator *envelope.Generator,
	builder *capsule.Builder,
	guard *isolation.Guard,
	manager *outbox.Manager,
	registry *transport.Registry,
) *Pipeline {
	return &Pipeline{
		boundary:  model,
		generator: generator,
		builder:   builder,
		guard:     guard,
		outbox:    manager,
		registry:  registry,
		auditLog:  audit.Nop(),
		logger:    slog.Default().With("component", "dispatch"),
	}
}

// WithAudit installs the audit logger.
func (p *Pipeline) WithAudit(l audit.Logger) *Pipeline {
	p.auditLog = l
	return p
}

// WithObservability installs the telemetry provider. Each dispatch then
// runs under a span with RED metrics recorded on completion.
func (p *Pipeline) WithObservability(obs *observability.Provider) *Pipeline {
	p.obs = obs
	return p
}

// Dispatch runs the full pipeline. Errors before the outbox phase leave no
// trace beyond logs; errors after it are recorded on the entry.
func (p *Pipeline) Dispatch(ctx context.Context, req Request) (result Result, err error) {
	if p.obs != nil {
		var finish func(error)
		ctx, finish = p.obs.TrackDispatch(ctx, string(req.Method))
		defer func() { finish(err) }()
	}
	return p.dispatch(ctx, req)
}

func (p *Pipeline) dispatch(ctx context.Context, req Request) (Result, error) {
	// Phase A: intent validation. Cheap checks only, no state changes.
	if err := p.validateIntent(req); err != nil {
		return Result{Error: err.Error()}, err
	}

	decl := p.boundary.Snapshot()
	signals := p.builder.Signals()

	// Phase B: boundary-requirement check. A required-but-undeclared
	// boundary warns and proceeds; blocking the send would push users to
	// declare boundaries carelessly just to get past the gate.
	if BoundaryRequired(decl, signals, req.BoundaryInvoked) && decl.IsDefault {
		p.logger.Warn("send requires a boundary declaration but none was made",
			"method", req.Method,
			"attachments", signals.AttachmentCount,
			"sessions", len(signals.Sessions),
		)
		_ = p.auditLog.Record(ctx, audit.EventDispatch, "boundary_requirement_unmet", "", map[string]any{
			"method": string(req.Method),
		})
	}

	// Phase C: envelope regeneration, always from the live context. A
	// stale ceiling is never reused silently.
	env, err := p.generator.RegenerateFromContext(ctx, decl, signals)
	if err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("envelope regeneration failed: %w", err)
	}

	// Phase D: capsule freeze and binding. Phase C just regenerated, so a
	// stale commit means an edit raced in between; binding will reject it.
	frozen, stale, err := p.builder.Commit()
	if err != nil {
		return Result{Error: err.Error()}, err
	}
	if stale {
		p.logger.Warn("capsule committed against a stale envelope", "capsule_id", frozen.CapsuleID)
	}
	env, err = p.generator.Bind(ctx, frozen)
	if err != nil {
		return Result{Error: err.Error()}, fmt.Errorf("envelope binding failed: %w", err)
	}

	// Phase E: isolation guard, nonce, outbox entry, transport. The guard
	// and nonce run before any write or network call. It scans everything
	// the transport will see, not just the body text: a subject line or a
	// renamed attachment is as transport-facing as the message itself.
	if err := p.guard.Check(ctx, transportFacingText(req, frozen), frozen); err != nil {
		return Result{Error: err.Error()}, err
	}
	if err := p.generator.ConsumeNonce(ctx, env); err != nil {
		return Result{Error: err.Error()}, err
	}

	entry, err := p.outbox.Create(ctx, env.EnvelopeID, frozen.CapsuleID, req.Method)
	if err != nil {
		return Result{Error: err.Error()}, err
	}

	result := Result{
		EntryID:    entry.EntryID,
		EnvelopeID: env.EnvelopeID,
		CapsuleID:  frozen.CapsuleID,
	}

	_ = p.auditLog.Record(ctx, audit.EventDispatch, "dispatch", entry.EntryID, map[string]any{
		"method":      string(req.Method),
		"envelope_id": env.EnvelopeID,
		"capsule_id":  frozen.CapsuleID,
	})

	return p.deliver(ctx, req, entry, frozen, result)
}

func (p *Pipeline) validateIntent(req Request) error {
	if !req.Method.Valid() {
		return contracts.NewValidationError("method", "method_unknown",
			fmt.Sprintf("unknown delivery method %q", req.Method))
	}
	if req.Method == contracts.DeliveryMail && req.Config["to"] == "" {
		return contracts.NewValidationError("config.to", "config_required",
			"Mail delivery requires a recipient")
	}
	if p.builder.Text() == "" && len(p.builder.Attachments()) == 0 {
		return contracts.NewValidationError("content", "content_required",
			"Message content or attachments required")
	}
	return nil
}

// deliver runs the transport leg. The entry exists from here on and is
// never rolled back; every outcome lands in its attempts log.
func (p *Pipeline) deliver(ctx context.Context, req Request, entry *contracts.OutboxEntry, frozen *contracts.Capsule, result Result) (Result, error) {
	switch entry.Status {
	case contracts.StatusSentChat:
		// In-conversation delivery is complete the moment it is recorded.
		result.Success = true
		result.DeliveryStatus = contracts.StatusSentChat
		return result, nil

	case contracts.StatusPendingUserAction:
		// Manual channels still invoke the transport to materialize the
		// artifact, but completion waits on user confirmation.
		sendResult, err := p.registry.Send(ctx, req.Method, p.transportRequest(req, entry, frozen))
		if err != nil {
			failed, terr := p.outbox.Transition(ctx, entry.EntryID, contracts.StatusFailed, err.Error())
			if terr != nil {
				p.logger.Error("outbox transition failed", "entry_id", entry.EntryID, "error", terr)
			} else {
				entry = failed
			}
			result.Error = err.Error()
			result.DeliveryStatus = entry.Status
			return result, err
		}
		if sendResult.ArtifactRef != "" {
			if err := p.outbox.SetArtifact(ctx, entry.EntryID, sendResult.ArtifactRef); err != nil {
				p.logger.Error("artifact record failed", "entry_id", entry.EntryID, "error", err)
			}
		}
		result.Success = true
		result.DeliveryStatus = contracts.StatusPendingUserAction
		return result, nil

	default:
		// Automated channel: queued -> sending -> sent | failed.
		if _, err := p.outbox.Transition(ctx, entry.EntryID, contracts.StatusSending, ""); err != nil {
			result.Error = err.Error()
			return result, err
		}
		sendResult, err := p.registry.Send(ctx, req.Method, p.transportRequest(req, entry, frozen))
		if err != nil {
			if _, terr := p.outbox.Transition(ctx, entry.EntryID, contracts.StatusFailed, err.Error()); terr != nil {
				p.logger.Error("outbox transition failed", "entry_id", entry.EntryID, "error", terr)
			}
			result.Error = err.Error()
			result.DeliveryStatus = contracts.StatusFailed
			return result, err
		}
		if _, err := p.outbox.Transition(ctx, entry.EntryID, contracts.StatusSent, ""); err != nil {
			result.Error = err.Error()
			return result, err
		}
		if sendResult.ArtifactRef != "" {
			if err := p.outbox.SetArtifact(ctx, entry.EntryID, sendResult.ArtifactRef); err != nil {
				p.logger.Error("artifact record failed", "entry_id", entry.EntryID, "error", err)
			}
		}
		result.Success = true
		result.DeliveryStatus = contracts.StatusSent
		return result, nil
	}
}

// transportFacingText gathers every string the transport request carries:
// body text, per-method config values, and attachment names.
func transportFacingText(req Request, frozen *contracts.Capsule) string {
	var sb strings.Builder
	sb.WriteString(frozen.Text)
	for _, v := range req.Config {
		sb.WriteString("\n")
		sb.WriteString(v)
	}
	for _, a := range frozen.Attachments {
		sb.WriteString("\n")
		sb.WriteString(a.Name)
	}
	return sb.String()
}

func (p *Pipeline) transportRequest(req Request, entry *contracts.OutboxEntry, frozen *contracts.Capsule) transport.Request {
	return transport.Request{
		PackageID:   entry.EntryID,
		EnvelopeRef: entry.EnvelopeRef,
		CapsuleRef:  entry.CapsuleRef,
		Config:      req.Config,
		Text:        frozen.Text,
		Attachments: isolation.SafeInfos(frozen.Attachments),
	}
}
