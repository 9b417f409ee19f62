package userms

import "time"

// User is a persisted account record. The password hash is never serialized;
// login-state fields (LoginAttempts, LockedUntil, LastLogin) are mutated only
// by the Authenticator.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          string
	IsActive      bool
	LoginAttempts int
	LockedUntil   *time.Time
	LastLogin     *time.Time
	CreatedAt     time.Time
}

// Session records one issued refresh token, for audit. The raw refresh token
// is never persisted; RefreshHash is a one-way digest of it. Expired
// sessions are inert, not deleted.
type Session struct {
	ID          string
	UserID      string
	RefreshHash string
	ExpiresAt   time.Time
	UserAgent   string
	IPAddress   string
	CreatedAt   time.Time
}

// UserSummary is the safe projection returned by the HTTP surface.
type UserSummary struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}
