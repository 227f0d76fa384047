package envelope

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNonceReplayed is returned when a nonce is consumed twice.
var ErrNonceReplayed = errors.New("envelope nonce already consumed")

// ReplayGuard enforces single-use nonces. Consume marks a nonce as spent;
// a second Consume of the same nonce fails with ErrNonceReplayed.
type ReplayGuard interface {
	Consume(ctx context.Context, nonce string) error
}

// MemoryReplayGuard is a process-local guard for single-node deployments
// and tests.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewMemoryReplayGuard creates an empty guard.
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]bool)}
}

func (g *MemoryReplayGuard) Consume(_ context.Context, nonce string) error {
	if nonce == "" {
		return fmt.Errorf("empty nonce")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[nonce] {
		return fmt.Errorf("%w: %s", ErrNonceReplayed, nonce)
	}
	g.seen[nonce] = true
	return nil
}
