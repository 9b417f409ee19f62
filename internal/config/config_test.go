package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewUserDefaults(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")

	c, err := NewUser()
	require.NoError(t, err)
	require.Equal(t, "5001", c.ServicePort)
	require.Equal(t, 5, c.MaxLoginAttempts)
	require.Equal(t, 30*time.Minute, c.LockoutDuration)
	require.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	require.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL)
	require.Equal(t, "localhost:6379", c.RedisAddr)
}

func TestNewUserOverrides(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("ACCOUNT_LOCKOUT_DURATION", "5")
	t.Setenv("JWT_ACCESS_TOKEN_TTL", "1m")

	c, err := NewUser()
	require.NoError(t, err)
	require.Equal(t, 3, c.MaxLoginAttempts)
	require.Equal(t, 5*time.Minute, c.LockoutDuration)
	require.Equal(t, time.Minute, c.AccessTokenTTL)
}

func TestNewUserRejectsBadValues(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "zero")

	_, err := NewUser()
	require.Error(t, err)
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("ENV", "production")

	_, err := NewUser()
	require.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "an-actual-secret")
	_, err = NewUser()
	require.NoError(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_USER", "svc")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "levels_living_db")

	c, err := NewUser()
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5432 user=svc dbname=levels_living_db sslmode=disable password=pw", c.PostgresDSN)
}

func TestNewCustomerPageSizes(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")

	c, err := NewCustomer()
	require.NoError(t, err)
	require.Equal(t, "5002", c.ServicePort)
	require.Equal(t, 50, c.DefaultPageSize)
	require.Equal(t, 100, c.MaxPageSize)

	t.Setenv("MAX_PAGE_SIZE", "10")
	_, err = NewCustomer()
	require.Error(t, err)
}
