package userms

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite file, for development
// setups without PostgreSQL. Timestamps are stored as unix seconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			login_attempts INTEGER NOT NULL DEFAULT 0,
			locked_until INTEGER,
			last_login INTEGER,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			refresh_token_hash TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			user_agent TEXT,
			ip_address TEXT,
			created_at INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func unixPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0)
	return &t
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	active := 0
	if u.IsActive {
		active = 1
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, email, password_hash, role, is_active, login_attempts, created_at) VALUES(?,?,?,?,?,0,?)`,
		u.ID, u.Email, u.PasswordHash, u.Role, active, created.Unix())
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrEmailTaken
	}
	return err
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var active int
	var lockedUntil, lastLogin sql.NullInt64
	var created int64
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &active,
		&u.LoginAttempts, &lockedUntil, &lastLogin, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.IsActive = active != 0
	u.LockedUntil = timePtr(lockedUntil)
	u.LastLogin = timePtr(lastLogin)
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

const sqliteUserColumns = `user_id, email, password_hash, role, is_active, login_attempts, locked_until, last_login, created_at`

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE user_id = ?`, id))
}

func (s *SQLiteStore) UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil, lastLogin *time.Time) error {
	if lastLogin != nil {
		_, err := s.db.ExecContext(ctx,
			`UPDATE users SET login_attempts = ?, locked_until = ?, last_login = ? WHERE user_id = ?`,
			attempts, unixPtr(lockedUntil), unixPtr(lastLogin), id)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET login_attempts = ?, locked_until = ? WHERE user_id = ?`,
		attempts, unixPtr(lockedUntil), id)
	return err
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		var u User
		var active int
		var lockedUntil, lastLogin sql.NullInt64
		var created int64
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &active,
			&u.LoginAttempts, &lockedUntil, &lastLogin, &created); err != nil {
			return nil, err
		}
		u.IsActive = active != 0
		u.LockedUntil = timePtr(lockedUntil)
		u.LastLogin = timePtr(lastLogin)
		u.CreatedAt = time.Unix(created, 0)
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions(session_id, user_id, refresh_token_hash, expires_at, user_agent, ip_address, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		sess.ID, sess.UserID, sess.RefreshHash, sess.ExpiresAt.Unix(), sess.UserAgent, sess.IPAddress, time.Now().Unix())
	return err
}

func (s *SQLiteStore) SessionsByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, refresh_token_hash, expires_at, user_agent, ip_address, created_at
		 FROM user_sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		var sess Session
		var expires, created int64
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.RefreshHash, &expires, &sess.UserAgent, &sess.IPAddress, &created); err != nil {
			return nil, err
		}
		sess.ExpiresAt = time.Unix(expires, 0)
		sess.CreatedAt = time.Unix(created, 0)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) bool { return s.db.PingContext(ctx) == nil }
