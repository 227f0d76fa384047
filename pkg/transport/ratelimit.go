package transport

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sealpost/core/pkg/contracts"
)

// RateLimited wraps a sender with a token-bucket limiter so a burst of
// dispatches cannot hammer a collaborator.
type RateLimited struct {
	inner   Sender
	limiter *rate.Limiter
}

// NewRateLimited wraps inner at r sends per second with the given burst.
func NewRateLimited(inner Sender, r rate.Limit, burst int) *RateLimited {
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(r, burst)}
}

func (s *RateLimited) Method() contracts.DeliveryMethod { return s.inner.Method() }

func (s *RateLimited) Send(ctx context.Context, req Request) (Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return s.inner.Send(ctx, req)
}
