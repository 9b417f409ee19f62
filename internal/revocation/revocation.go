// Package revocation implements the shared token denylist.
//
// Every service instance that validates tokens consults the same registry,
// so revocation is visible cluster-wide immediately. Entries carry a TTL
// covering the remaining lifetime of the revoked token; once the token would
// have expired anyway the entry evaporates, which bounds the registry to the
// set of not-yet-expired revoked tokens.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when the registry cannot be reached within the
// per-call timeout.
var ErrUnavailable = errors.New("revocation registry unavailable")

const marker = "revoked"

// Registry records token identifiers (jti) invalidated before their natural
// expiry.
type Registry interface {
	// Revoke denylists a jti for at least ttl. Revoking an already-revoked
	// jti is a no-op success.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked reports whether a jti has been denylisted.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRegistry is the production Registry, backed by a shared Redis
// instance with native per-key TTL expiry. Constructed once at startup and
// injected into every component that needs it.
type RedisRegistry struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedis wraps an existing Redis client. timeout bounds every registry
// call; zero means one second.
func NewRedis(client *redis.Client, timeout time.Duration) *RedisRegistry {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &RedisRegistry{client: client, timeout: timeout}
}

func (r *RedisRegistry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// The token is already past its expiry; nothing left to deny.
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, jti, marker, ttl).Err(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.client.Exists(ctx, jti).Result()
	if err != nil {
		return false, errors.Join(ErrUnavailable, err)
	}
	return n > 0, nil
}

// Ping reports registry reachability, for health endpoints.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}
