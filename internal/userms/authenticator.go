package userms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Authentication decisions. The HTTP boundary maps them to 401/423/403.
// ErrInvalidCredentials deliberately covers both "no such user" and "wrong
// password" so responses cannot be used for account enumeration.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountDisabled    = errors.New("account is deactivated")
)

// Authenticator verifies credentials against the store and enforces the
// brute-force lockout policy. Safe for concurrent use; a lost update on the
// attempt counter under concurrent wrong-password submissions for the same
// account is tolerated.
type Authenticator struct {
	store       Store
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

// NewAuthenticator builds an authenticator with the configured lockout
// threshold and duration.
func NewAuthenticator(store Store, maxAttempts int, lockout time.Duration) *Authenticator {
	return &Authenticator{
		store:       store,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// Authenticate verifies email/password and returns the user on success.
// Decision errors are ErrInvalidCredentials, ErrAccountLocked and
// ErrAccountDisabled; any other error means the store failed and no decision
// was made (fail closed, counters untouched).
//
// Counter semantics: a mismatch increments the counter and, on reaching the
// threshold, sets the lock expiry; that attempt still reports invalid
// credentials and the lock is observed by subsequent attempts. A match resets
// the counter, clears the lock and stamps the last successful login. State
// is persisted before the decision is returned.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := a.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	now := a.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		attempts := user.LoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= a.maxAttempts {
			t := now.Add(a.lockout)
			lockedUntil = &t
		}
		if err := a.store.UpdateLoginState(ctx, user.ID, attempts, lockedUntil, nil); err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		return nil, ErrInvalidCredentials
	}

	if err := a.store.UpdateLoginState(ctx, user.ID, 0, nil, &now); err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now
	return user, nil
}

// IsDecision reports whether err is an authentication decision rather than
// an infrastructure failure.
func IsDecision(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAccountLocked) ||
		errors.Is(err, ErrAccountDisabled)
}

// HashPassword derives the stored password verifier.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
