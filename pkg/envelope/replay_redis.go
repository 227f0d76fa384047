package envelope

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplayGuard enforces single-use nonces across processes using
// SET NX with a TTL slightly past the consent lifetime, so keys expire
// after the envelope they guard can no longer be valid.
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisReplayGuard creates a guard on an existing client.
func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{
		client: client,
		prefix: "sealpost:nonce:",
		ttl:    DefaultConsentLifetime + time.Hour,
	}
}

func (g *RedisReplayGuard) Consume(ctx context.Context, nonce string) error {
	if nonce == "" {
		return fmt.Errorf("empty nonce")
	}
	ok, err := g.client.SetNX(ctx, g.prefix+nonce, 1, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("replay guard unavailable: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNonceReplayed, nonce)
	}
	return nil
}
