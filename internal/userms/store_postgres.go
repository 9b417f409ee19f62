package userms

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL. Tables are created by
// migrations; Open only verifies connectivity.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const userColumns = `user_id, email, password_hash, role, is_active, login_attempts, locked_until, last_login, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	var lockedUntil, lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.LoginAttempts, &lockedUntil, &lastLogin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lockedUntil.Valid {
		u.LockedUntil = &lockedUntil.Time
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users(user_id, email, password_hash, role, is_active, login_attempts) VALUES($1,$2,$3,$4,$5,0)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.IsActive)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (p *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *PostgresStore) UserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
}

func (p *PostgresStore) UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil, lastLogin *time.Time) error {
	if lastLogin != nil {
		_, err := p.db.ExecContext(ctx,
			`UPDATE users SET login_attempts = $1, locked_until = $2, last_login = $3 WHERE user_id = $4`,
			attempts, lockedUntil, lastLogin, id)
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE users SET login_attempts = $1, locked_until = $2 WHERE user_id = $3`,
		attempts, lockedUntil, id)
	return err
}

func (p *PostgresStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateSession(ctx context.Context, s *Session) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO user_sessions(session_id, user_id, refresh_token_hash, expires_at, user_agent, ip_address)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		s.ID, s.UserID, s.RefreshHash, s.ExpiresAt, s.UserAgent, s.IPAddress)
	return err
}

func (p *PostgresStore) SessionsByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT session_id, user_id, refresh_token_hash, expires_at, user_agent, ip_address, created_at
		 FROM user_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.RefreshHash, &s.ExpiresAt, &s.UserAgent, &s.IPAddress, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) Ping(ctx context.Context) bool { return p.db.PingContext(ctx) == nil }
