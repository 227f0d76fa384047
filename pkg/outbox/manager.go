package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sealpost/core/pkg/audit"
	"github.com/sealpost/core/pkg/contracts"
)

// ErrInvalidTransition is returned when a status change is not in the
// transition table.
var ErrInvalidTransition = errors.New("invalid outbox transition")

// ErrEntryNotFound is returned when the entry id is unknown.
var ErrEntryNotFound = errors.New("outbox entry not found")

// transitions is the forward-only table. A status absent here admits no
// further change; failed is the single re-queueable terminal.
var transitions = map[contracts.DeliveryStatus][]contracts.DeliveryStatus{
	contracts.StatusQueued:            {contracts.StatusSending},
	contracts.StatusSending:           {contracts.StatusSent, contracts.StatusFailed},
	contracts.StatusFailed:            {contracts.StatusQueued},
	contracts.StatusPendingUserAction: {contracts.StatusSentManual, contracts.StatusFailed},
}

func transitionAllowed(from, to contracts.DeliveryStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Manager owns the outbox state machine on top of a Store.
type Manager struct {
	store    Store
	auditLog audit.Logger
	logger   *slog.Logger
	clock    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithAudit installs the audit logger.
func WithAudit(l audit.Logger) Option {
	return func(m *Manager) { m.auditLog = l }
}

// WithClock overrides the clock for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates a manager on the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		auditLog: audit.Nop(),
		logger:   slog.Default().With("component", "outbox"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InitialStatus maps a delivery method to the status a fresh entry starts
// in. Automated channels queue; manual channels wait on the user; chat is
// complete the moment it is recorded.
func InitialStatus(method contracts.DeliveryMethod) contracts.DeliveryStatus {
	switch method {
	case contracts.DeliveryMail:
		return contracts.StatusQueued
	case contracts.DeliveryMessenger, contracts.DeliveryDownload:
		return contracts.StatusPendingUserAction
	case contracts.DeliveryChat:
		return contracts.StatusSentChat
	}
	return contracts.StatusQueued
}

// Create records a new entry in the initial status for its method. The
// first attempt is appended immediately so the log covers the entry's
// whole life.
func (m *Manager) Create(ctx context.Context, envelopeRef, capsuleRef string, method contracts.DeliveryMethod) (*contracts.OutboxEntry, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unknown delivery method %q", method)
	}
	now := m.clock().UTC()
	status := InitialStatus(method)
	entry := &contracts.OutboxEntry{
		EntryID:     uuid.New().String(),
		EnvelopeRef: envelopeRef,
		CapsuleRef:  capsuleRef,
		Method:      method,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
		Attempts:    []contracts.DeliveryAttempt{{At: now, Status: status}},
	}
	if err := m.store.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist outbox entry: %w", err)
	}
	_ = m.auditLog.Record(ctx, audit.EventDispatch, "outbox_create", entry.EntryID, map[string]any{
		"method": string(method),
		"status": string(status),
	})
	return entry, nil
}

// Transition moves an entry to a new status, appending an attempt. The
// note lands in the attempt's error field for failure statuses.
func (m *Manager) Transition(ctx context.Context, entryID string, to contracts.DeliveryStatus, note string) (*contracts.OutboxEntry, error) {
	entry, err := m.store.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	if !transitionAllowed(entry.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s for entry %s", ErrInvalidTransition, entry.Status, to, entryID)
	}

	now := m.clock().UTC()
	attempt := contracts.DeliveryAttempt{At: now, Status: to}
	if to == contracts.StatusFailed {
		attempt.Error = note
	}
	entry.Status = to
	entry.UpdatedAt = now
	entry.Attempts = append(entry.Attempts, attempt)

	if err := m.store.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist outbox entry: %w", err)
	}
	m.logger.Info("outbox transition", "entry_id", entryID, "status", to)
	_ = m.auditLog.Record(ctx, audit.EventDispatch, "outbox_transition", entryID, map[string]any{
		"status": string(to),
	})
	return entry, nil
}

// SetArtifact records the artifact ref a transport produced.
func (m *Manager) SetArtifact(ctx context.Context, entryID, artifactRef string) error {
	entry, err := m.store.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	entry.ArtifactRef = artifactRef
	entry.UpdatedAt = m.clock().UTC()
	return m.store.Put(ctx, entry)
}

// Retry re-queues a failed entry. Only failed entries are retryable; the
// new attempt is appended like any other transition.
func (m *Manager) Retry(ctx context.Context, entryID string) (*contracts.OutboxEntry, error) {
	return m.Transition(ctx, entryID, contracts.StatusQueued, "")
}

// ConfirmManual marks a pending_user_action entry as sent by the user.
func (m *Manager) ConfirmManual(ctx context.Context, entryID string) (*contracts.OutboxEntry, error) {
	return m.Transition(ctx, entryID, contracts.StatusSentManual, "")
}

// Get returns one entry, or ErrEntryNotFound.
func (m *Manager) Get(ctx context.Context, entryID string) (*contracts.OutboxEntry, error) {
	entry, err := m.store.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	return entry, nil
}

// List returns all entries, oldest first.
func (m *Manager) List(ctx context.Context) ([]*contracts.OutboxEntry, error) {
	return m.store.List(ctx)
}

// Delete removes an entry by explicit user action.
func (m *Manager) Delete(ctx context.Context, entryID string) error {
	return m.store.Delete(ctx, entryID)
}
