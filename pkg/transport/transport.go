// Package transport carries sealed packages to their delivery channel.
// Senders are collaborators behind an interface; the dispatch pipeline
// treats them as untrusted and slow. Every failure is a TransportFailure,
// recorded as a delivery attempt, never a silent drop.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/isolation"
)

// DefaultTimeout bounds one send call to a collaborator.
const DefaultTimeout = 5 * time.Second

// Request is everything a sender may see. Attachments are the safe
// projection only; extracted content never crosses this boundary.
type Request struct {
	PackageID   string                         `json:"package_id"`
	EnvelopeRef string                         `json:"envelope_ref"`
	CapsuleRef  string                         `json:"capsule_ref"`
	Config      map[string]string              `json:"config,omitempty"`
	Text        string                         `json:"text"`
	Attachments []isolation.SafeAttachmentInfo `json:"attachments,omitempty"`
}

// Result is the outcome of one send.
type Result struct {
	Success bool
	// Status is the delivery status the outbox entry should move to.
	Status contracts.DeliveryStatus
	// ArtifactRef points at a produced artifact (download bundle path,
	// message id), when the channel yields one.
	ArtifactRef string
	Error       string
}

// Sender delivers one package over one channel.
type Sender interface {
	Method() contracts.DeliveryMethod
	Send(ctx context.Context, req Request) (Result, error)
}

// Registry maps delivery methods to senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[contracts.DeliveryMethod]Sender
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[contracts.DeliveryMethod]Sender)}
}

// Register adds a sender for its method, replacing any previous one.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Method()] = s
}

// Lookup returns the sender for a method.
func (r *Registry) Lookup(method contracts.DeliveryMethod) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[method]
	if !ok {
		return nil, &contracts.TransportFailure{
			Method: method,
			Detail: fmt.Sprintf("no sender registered for method %q", method),
		}
	}
	return s, nil
}

// Send looks up the sender and runs it under the transport timeout. Errors
// and collaborator-reported failures both come back as TransportFailure.
func (r *Registry) Send(ctx context.Context, method contracts.DeliveryMethod, req Request) (Result, error) {
	sender, err := r.Lookup(method)
	if err != nil {
		return Result{}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	result, err := sender.Send(sendCtx, req)
	if err != nil {
		return Result{}, &contracts.TransportFailure{Method: method, Detail: "send failed", Err: err}
	}
	if !result.Success && result.Status != contracts.StatusPendingUserAction {
		return result, &contracts.TransportFailure{Method: method, Detail: result.Error}
	}
	return result, nil
}
