package userms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/example/levelsliving/internal/httpx"
	"github.com/example/levelsliving/internal/middleware"
	"github.com/example/levelsliving/internal/roles"
)

var emailRx = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

const minPasswordLength = 8

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// hashRefreshToken derives the stored session verifier. sha256 rather than
// bcrypt: the raw refresh token exceeds bcrypt's 72-byte input limit.
func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Role == "" {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Email, password and role are required")
		return
	}
	if !emailRx.MatchString(req.Email) {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid email format")
		return
	}
	if !roles.Valid(req.Role) {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid role")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Password must be at least 8 characters")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("register: hash password: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httpx.Error(w, http.StatusConflict, "USER_EXISTS", "User already exists")
			return
		}
		log.Printf("register: create user: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	log.Printf("user created: %s", user.Email)
	httpx.JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
	})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Email and password are required")
		return
	}

	user, err := a.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			httpx.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		case errors.Is(err, ErrAccountLocked):
			httpx.Error(w, http.StatusLocked, "ACCOUNT_LOCKED", "Account is temporarily locked")
		case errors.Is(err, ErrAccountDisabled):
			httpx.Error(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is deactivated")
		default:
			log.Printf("login: %v", err)
			httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	access, _, err := a.tokens.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		log.Printf("login: issue access token: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	refresh, refreshClaims, err := a.tokens.IssueRefresh(user.ID)
	if err != nil {
		log.Printf("login: issue refresh token: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	session := &Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		RefreshHash: hashRefreshToken(refresh),
		ExpiresAt:   refreshClaims.ExpiresAt.Time,
		UserAgent:   r.UserAgent(),
		IPAddress:   r.RemoteAddr,
	}
	sessionID := session.ID
	if err := a.store.CreateSession(r.Context(), session); err != nil {
		// Login still succeeds; the session record is audit data.
		log.Printf("login: create session: %v", err)
		sessionID = ""
	}

	log.Printf("user authenticated: %s", user.Email)
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Login successful",
		"access_token":  access,
		"refresh_token": refresh,
		"session_id":    sessionID,
		"user": map[string]string{
			"user_id": user.ID,
			"email":   user.Email,
			"role":    user.Role,
		},
	})
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
		return
	}
	if a.revocations == nil {
		log.Printf("logout: revocation registry not configured")
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	if err := a.revocations.Revoke(r.Context(), claims.ID, a.tokens.RemainingLife(claims)); err != nil {
		log.Printf("logout: revoke %s: %v", claims.ID, err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (a *App) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	user, err := a.store.UserByID(r.Context(), id.ID)
	if err != nil {
		log.Printf("profile: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	if user == nil {
		httpx.Error(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	httpx.JSON(w, http.StatusOK, user.Summary())
}

func (a *App) handleValidate(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"user_id": claims.Subject,
		"role":    claims.Role,
		"email":   claims.Email,
	})
}

func (a *App) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("list users: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"users": summaries})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if p, ok := a.store.(interface{ Ping(context.Context) bool }); ok && p.Ping(r.Context()) {
		dbStatus = "connected"
	}
	redisStatus := "disconnected"
	if p, ok := a.revocations.(interface{ Ping(context.Context) error }); ok && p.Ping(r.Context()) == nil {
		redisStatus = "connected"
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"service":  "user-auth",
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
