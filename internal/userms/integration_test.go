package userms

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"

	"github.com/example/levelsliving/internal/dbmigrate"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if os.Getenv("SKIP_DOCKER") == "1" {
		t.Skip("SKIP_DOCKER=1 set; skipping integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=levels_test",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	var dsn string
	err = pool.Retry(func() error {
		hostPort := resource.GetPort("5432/tcp")
		dsn = fmt.Sprintf("host=localhost port=%s user=test dbname=levels_test sslmode=disable password=test", hostPort)
		return dbmigrate.Apply("../../migrations", dsn)
	})
	require.NoError(t, err)
	return dsn
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	defer store.Close()
	require.True(t, store.Ping(ctx))

	u := &User{
		ID:           uuid.NewString(),
		Email:        "it@example.com",
		PasswordHash: "$2a$10$fakehash",
		Role:         "admin",
		IsActive:     true,
	}
	require.NoError(t, store.CreateUser(ctx, u))
	require.ErrorIs(t, store.CreateUser(ctx, &User{
		ID: uuid.NewString(), Email: "it@example.com", PasswordHash: "h", Role: "driver", IsActive: true,
	}), ErrEmailTaken)

	got, err := store.UserByEmail(ctx, "it@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)
	require.False(t, got.CreatedAt.IsZero())

	// Lockout state round trip.
	until := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Millisecond)
	require.NoError(t, store.UpdateLoginState(ctx, u.ID, 5, &until, nil))
	got, err = store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.LoginAttempts)
	require.NotNil(t, got.LockedUntil)
	require.True(t, got.LockedUntil.Equal(until))

	login := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.UpdateLoginState(ctx, u.ID, 0, nil, &login))
	got, err = store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, got.LoginAttempts)
	require.Nil(t, got.LockedUntil)
	require.NotNil(t, got.LastLogin)

	// Session audit records.
	sess := &Session{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		RefreshHash: hashRefreshToken("raw-refresh-token"),
		ExpiresAt:   time.Now().Add(168 * time.Hour).UTC().Truncate(time.Millisecond),
		UserAgent:   "go-test/1.0",
		IPAddress:   "127.0.0.1:51234",
	}
	require.NoError(t, store.CreateSession(ctx, sess))
	sessions, err := store.SessionsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, sess.RefreshHash, sessions[0].RefreshHash)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	missing, err := store.UserByID(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)
}
