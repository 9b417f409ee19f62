package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Auth carries the settings shared by every service that mints or validates
// tokens. The JWT secret must be identical across services; token integrity
// depends on it.
type Auth struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// User is the configuration for the user/authentication service.
type User struct {
	Auth
	ServicePort string
	DBAdapter   string
	SQLiteFile  string

	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr string
	RedisDB   int

	MaxLoginAttempts int
	LockoutDuration  time.Duration

	LoginRatePerMinute int

	MigrationsDir string
}

// Customer is the configuration for the customer-record service.
type Customer struct {
	Auth
	ServicePort string
	DBAdapter   string

	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr string
	RedisDB   int

	DefaultPageSize int
	MaxPageSize     int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func loadAuth() (Auth, error) {
	a := Auth{JWTSecret: getenv("JWT_SECRET_KEY", "jwt-secret-key-change-in-production")}

	var err error
	if a.AccessTokenTTL, err = getenvDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return a, err
	}
	if a.RefreshTokenTTL, err = getenvDuration("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return a, err
	}
	if a.AccessTokenTTL <= 0 || a.RefreshTokenTTL <= 0 {
		return a, errors.New("token TTLs must be positive")
	}

	env := strings.ToLower(getenv("ENV", ""))
	if env == "production" || env == "prod" {
		if a.JWTSecret == "" || a.JWTSecret == "jwt-secret-key-change-in-production" {
			return a, errors.New("JWT_SECRET_KEY must be set in production")
		}
	}
	return a, nil
}

func loadPostgres() (dsn, host, port, user, password, db, sslmode string) {
	return getenv("POSTGRES_DSN", ""),
		getenv("POSTGRES_HOST", getenv("DB_HOST", "localhost")),
		getenv("POSTGRES_PORT", getenv("DB_PORT", "5432")),
		getenv("POSTGRES_USER", getenv("DB_USER", "levels")),
		getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", "")),
		getenv("POSTGRES_DB", getenv("DB_NAME", "levels_living_db")),
		getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", "disable"))
}

func buildPostgresDSN(dsn, host, port, user, password, db, sslmode string) (string, error) {
	if dsn != "" {
		return dsn, nil
	}
	if host == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if user == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if db == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}
	if port == "" {
		port = "5432"
	}
	if sslmode == "" {
		sslmode = "disable"
	}
	out := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s", host, port, user, db, sslmode)
	if password != "" {
		out += " password=" + password
	}
	return out, nil
}

func redisAddr() string {
	return getenv("REDIS_HOST", "localhost") + ":" + getenv("REDIS_PORT", "6379")
}

func checkPort(port string) error {
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid SERVICE_PORT: %s", port)
	}
	return nil
}

// NewUser reads the user service configuration from the environment.
func NewUser() (*User, error) {
	auth, err := loadAuth()
	if err != nil {
		return nil, err
	}

	c := &User{
		Auth:          auth,
		ServicePort:   getenv("SERVICE_PORT", "5001"),
		DBAdapter:     getenv("DB_ADAPTER", "postgres"),
		SQLiteFile:    getenv("SQLITE_FILE", "./data/userms.db"),
		RedisAddr:     redisAddr(),
		MigrationsDir: getenv("MIGRATIONS_DIR", "./migrations"),
	}
	c.PostgresDSN, c.PostgresHost, c.PostgresPort, c.PostgresUser,
		c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode = loadPostgres()

	if c.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if c.MaxLoginAttempts, err = getenvInt("MAX_LOGIN_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if c.MaxLoginAttempts < 1 {
		return nil, errors.New("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	lockoutMinutes, err := getenvInt("ACCOUNT_LOCKOUT_DURATION", 30)
	if err != nil {
		return nil, err
	}
	if lockoutMinutes < 1 {
		return nil, errors.New("ACCOUNT_LOCKOUT_DURATION must be at least 1 minute")
	}
	c.LockoutDuration = time.Duration(lockoutMinutes) * time.Minute
	if c.LoginRatePerMinute, err = getenvInt("LOGIN_RATE_PER_MINUTE", 30); err != nil {
		return nil, err
	}

	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}
	if c.DBAdapter == "sqlite" && c.SQLiteFile == "" {
		return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
	}
	if err := checkPort(c.ServicePort); err != nil {
		return nil, err
	}
	return c, nil
}

// NewCustomer reads the customer service configuration from the environment.
func NewCustomer() (*Customer, error) {
	auth, err := loadAuth()
	if err != nil {
		return nil, err
	}

	c := &Customer{
		Auth:        auth,
		ServicePort: getenv("SERVICE_PORT", "5002"),
		DBAdapter:   getenv("DB_ADAPTER", "postgres"),
		RedisAddr:   redisAddr(),
	}
	c.PostgresDSN, c.PostgresHost, c.PostgresPort, c.PostgresUser,
		c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode = loadPostgres()

	if c.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if c.DefaultPageSize, err = getenvInt("DEFAULT_PAGE_SIZE", 50); err != nil {
		return nil, err
	}
	if c.MaxPageSize, err = getenvInt("MAX_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		return nil, errors.New("page size configuration is inconsistent")
	}

	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}
	if err := checkPort(c.ServicePort); err != nil {
		return nil, err
	}
	return c, nil
}

// BuildPostgresDSN constructs a DSN from the individual settings, or returns
// POSTGRES_DSN verbatim when it is set.
func (c *User) BuildPostgresDSN() (string, error) {
	return buildPostgresDSN(c.PostgresDSN, c.PostgresHost, c.PostgresPort,
		c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// BuildPostgresDSN constructs a DSN from the individual settings, or returns
// POSTGRES_DSN verbatim when it is set.
func (c *Customer) BuildPostgresDSN() (string, error) {
	return buildPostgresDSN(c.PostgresDSN, c.PostgresHost, c.PostgresPort,
		c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}
