// Package boundary owns the declared consent boundary: ingress/egress
// presets, explicit allow-lists, and the offline switch.
//
// Every mutation runs as one critical section, restamps the declaration,
// and signals the envelope generator. There is no batched or deferred mode;
// each boundary mutation is regeneration-eligible on its own.
package boundary

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealpost/core/pkg/contracts"
)

// Notifier receives the boundary-changed signal. The envelope generator
// implements this to queue pending capabilities and constraints.
type Notifier interface {
	BoundaryChanged(decl contracts.BoundaryDeclaration)
}

// Model is the single-writer state object for one boundary declaration.
type Model struct {
	mu       sync.Mutex
	decl     contracts.BoundaryDeclaration
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

// NewModel creates a boundary in its most restrictive default state:
// egress none, ingress capsule_only, is_default true. Relaxation is always
// explicit.
func NewModel() *Model {
	m := &Model{
		logger: slog.Default().With("component", "boundary"),
		clock:  time.Now,
	}
	m.decl = DefaultDeclaration()
	return m
}

// DefaultDeclaration returns the restrictive default boundary.
func DefaultDeclaration() contracts.BoundaryDeclaration {
	decl := contracts.BoundaryDeclaration{
		Egress:    contracts.EgressDeclaration{Preset: contracts.EgressNone},
		Ingress:   contracts.IngressDeclaration{Preset: contracts.IngressCapsuleOnly},
		IsDefault: true,
	}
	decl.Egress.Summary = SummarizeEgress(decl.Egress)
	decl.Ingress.Summary = SummarizeIngress(decl.Ingress)
	return decl
}

// WithClock overrides the clock for deterministic testing.
func (m *Model) WithClock(clock func() time.Time) *Model {
	m.clock = clock
	return m
}

// OnChange registers the envelope generator (or any notifier). Every
// subsequent mutation signals it with a declaration snapshot.
func (m *Model) OnChange(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// Snapshot returns an independent copy of the current declaration.
func (m *Model) Snapshot() contracts.BoundaryDeclaration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneDeclaration(m.decl)
}

// Restore replaces the declaration wholesale (used when loading persisted
// state). Restore does not signal the notifier: loading is not an edit.
func (m *Model) Restore(decl contracts.BoundaryDeclaration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	decl.Egress.Summary = SummarizeEgress(decl.Egress)
	decl.Ingress.Summary = SummarizeIngress(decl.Ingress)
	m.decl = cloneDeclaration(decl)
}

// SetEgressPreset switches the outbound posture.
func (m *Model) SetEgressPreset(p contracts.EgressPreset) error {
	if !p.Valid() {
		return contracts.NewValidationError("egress.preset", "INVALID_VALUE", "unknown egress preset "+string(p))
	}
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		d.Egress.Preset = p
	})
	return nil
}

// AddEgressDestination appends a typed allow-list entry and returns its id.
func (m *Model) AddEgressDestination(destination, entryType, description string) (string, error) {
	if destination == "" {
		return "", contracts.NewValidationError("egress.destination", "REQUIRED", "destination is required")
	}
	id := uuid.New().String()
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		d.Egress.Destinations = append(d.Egress.Destinations, contracts.EgressDestination{
			ID:          id,
			Destination: destination,
			Type:        entryType,
			Description: description,
		})
	})
	return id, nil
}

// UpdateEgressDestination rewrites an existing entry in place.
func (m *Model) UpdateEgressDestination(id, destination, entryType, description string) error {
	found := false
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		for i := range d.Egress.Destinations {
			if d.Egress.Destinations[i].ID == id {
				d.Egress.Destinations[i].Destination = destination
				d.Egress.Destinations[i].Type = entryType
				d.Egress.Destinations[i].Description = description
				found = true
				return
			}
		}
	})
	if !found {
		return contracts.NewValidationError("egress.destination", "NOT_FOUND", "no destination with id "+id)
	}
	return nil
}

// RemoveEgressDestination deletes an entry by id.
func (m *Model) RemoveEgressDestination(id string) error {
	found := false
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		for i := range d.Egress.Destinations {
			if d.Egress.Destinations[i].ID == id {
				d.Egress.Destinations = append(d.Egress.Destinations[:i], d.Egress.Destinations[i+1:]...)
				found = true
				return
			}
		}
	})
	if !found {
		return contracts.NewValidationError("egress.destination", "NOT_FOUND", "no destination with id "+id)
	}
	return nil
}

// SetIngressPreset switches the inbound posture.
func (m *Model) SetIngressPreset(p contracts.IngressPreset) error {
	if !p.Valid() {
		return contracts.NewValidationError("ingress.preset", "INVALID_VALUE", "unknown ingress preset "+string(p))
	}
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		d.Ingress.Preset = p
	})
	return nil
}

// AddIngressSource appends a typed allow-list entry and returns its id.
func (m *Model) AddIngressSource(source, entryType, description string) (string, error) {
	if source == "" {
		return "", contracts.NewValidationError("ingress.source", "REQUIRED", "source is required")
	}
	id := uuid.New().String()
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		d.Ingress.Sources = append(d.Ingress.Sources, contracts.IngressSource{
			ID:          id,
			Source:      source,
			Type:        entryType,
			Description: description,
		})
	})
	return id, nil
}

// RemoveIngressSource deletes an entry by id.
func (m *Model) RemoveIngressSource(id string) error {
	found := false
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		for i := range d.Ingress.Sources {
			if d.Ingress.Sources[i].ID == id {
				d.Ingress.Sources = append(d.Ingress.Sources[:i], d.Ingress.Sources[i+1:]...)
				found = true
				return
			}
		}
	})
	if !found {
		return contracts.NewValidationError("ingress.source", "NOT_FOUND", "no source with id "+id)
	}
	return nil
}

// SetSessionRefs replaces the ingress session reference set.
func (m *Model) SetSessionRefs(refs []string) {
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		d.Ingress.SessionRefs = append([]string(nil), refs...)
	})
}

// SetOfflineOnly flips the offline switch. When set, derivation voids both
// network allow-lists regardless of their content.
func (m *Model) SetOfflineOnly(offline bool) {
	m.mutate(func(d *contracts.BoundaryDeclaration) {
		d.OfflineOnly = offline
	})
}

// mutate applies one edit atomically: summary recomputation, default flag,
// timestamp, and the boundary-changed signal all happen under the lock so
// no observer sees a torn declaration.
func (m *Model) mutate(edit func(*contracts.BoundaryDeclaration)) {
	m.mu.Lock()
	edit(&m.decl)
	m.decl.Egress.Summary = SummarizeEgress(m.decl.Egress)
	m.decl.Ingress.Summary = SummarizeIngress(m.decl.Ingress)
	m.decl.IsDefault = false
	m.decl.LastModified = m.clock().UTC()
	snapshot := cloneDeclaration(m.decl)
	notifier := m.notifier
	m.mu.Unlock()

	m.logger.Debug("boundary changed",
		"egress_preset", snapshot.Egress.Preset,
		"ingress_preset", snapshot.Ingress.Preset,
		"offline_only", snapshot.OfflineOnly,
	)
	if notifier != nil {
		notifier.BoundaryChanged(snapshot)
	}
}

func cloneDeclaration(d contracts.BoundaryDeclaration) contracts.BoundaryDeclaration {
	out := d
	out.Egress.Destinations = append([]contracts.EgressDestination(nil), d.Egress.Destinations...)
	out.Ingress.Sources = append([]contracts.IngressSource(nil), d.Ingress.Sources...)
	out.Ingress.SessionRefs = append([]string(nil), d.Ingress.SessionRefs...)
	return out
}
