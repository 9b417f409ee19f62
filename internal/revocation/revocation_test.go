package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedis(rdb, time.Second), mr
}

func TestRevokeAndCheck(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, reg.Revoke(ctx, "jti-1", time.Minute))

	revoked, err = reg.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestRevokeIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Revoke(ctx, "jti-2", time.Minute))
	require.NoError(t, reg.Revoke(ctx, "jti-2", time.Minute))

	revoked, err := reg.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestEntryExpiresWithTokenLifetime(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Revoke(ctx, "jti-3", 30*time.Second))

	mr.FastForward(31 * time.Second)

	revoked, err := reg.IsRevoked(ctx, "jti-3")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestNonPositiveTTLIsNoop(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Revoke(ctx, "jti-4", 0))

	revoked, err := reg.IsRevoked(ctx, "jti-4")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestUnreachableRegistryReturnsErrUnavailable(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()
	mr.Close()

	_, err := reg.IsRevoked(ctx, "jti-5")
	require.ErrorIs(t, err, ErrUnavailable)

	err = reg.Revoke(ctx, "jti-5", time.Minute)
	require.ErrorIs(t, err, ErrUnavailable)
}
