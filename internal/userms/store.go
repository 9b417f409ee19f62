package userms

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrEmailTaken is returned by CreateUser when the email is already
// registered.
var ErrEmailTaken = errors.New("email already registered")

// Store is the credential store and session registry contract. Lookups
// return (nil, nil) when no record matches; an error always means the store
// itself failed.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	// UpdateLoginState persists the attempt counter, lock expiry and last
	// successful login in one write.
	UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil, lastLogin *time.Time) error
	ListUsers(ctx context.Context) ([]*User, error)

	CreateSession(ctx context.Context, s *Session) error
	SessionsByUser(ctx context.Context, userID string) ([]*Session, error)
}

// MemStore is the in-memory Store used by tests and DB_ADAPTER=memory.
type MemStore struct {
	mu       sync.Mutex
	users    map[string]*User // keyed by id
	byEmail  map[string]string
	sessions map[string]*Session
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:    map[string]*User{},
		byEmail:  map[string]string{},
		sessions: map[string]*Session{},
	}
}

func copyUser(u *User) *User {
	out := *u
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		out.LockedUntil = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		out.LastLogin = &t
	}
	return &out
}

func (m *MemStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	stored := copyUser(u)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.users[stored.ID] = stored
	m.byEmail[stored.Email] = stored.ID
	return nil
}

func (m *MemStore) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	return copyUser(m.users[id]), nil
}

func (m *MemStore) UserByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (m *MemStore) UpdateLoginState(_ context.Context, id string, attempts int, lockedUntil, lastLogin *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errors.New("no such user")
	}
	u.LoginAttempts = attempts
	u.LockedUntil = lockedUntil
	if lastLogin != nil {
		u.LastLogin = lastLogin
	}
	return nil
}

func (m *MemStore) ListUsers(_ context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *s
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.sessions[stored.ID] = &stored
	return nil
}

func (m *MemStore) SessionsByUser(_ context.Context, userID string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// lifecycle helpers
func (m *MemStore) Close() error              { return nil }
func (m *MemStore) Ping(context.Context) bool { return true }
