// Package middleware provides the access-control wrapper for protected
// operations plus the ambient HTTP middleware both services share.
package middleware

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/levelsliving/internal/httpx"
	"github.com/example/levelsliving/internal/token"
)

// Identity is the resolved caller attached to the request context after a
// token passes validation and the live user record has been re-fetched.
type Identity struct {
	ID    string
	Email string
	Role  string
}

// UserResolver re-fetches the live user behind a validated token. Returning
// (nil, nil) means the user no longer exists or is deactivated; the request
// is rejected as unauthorized. Role checks always run against the resolved
// role, not the token claim, so role changes take effect without waiting for
// token expiry.
type UserResolver interface {
	ResolveUser(ctx context.Context, userID string) (*Identity, error)
}

type ctxKey int

const (
	identityKey ctxKey = iota
	claimsKey
)

// IdentityFrom returns the caller identity stored by RequireRoles.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// ClaimsFrom returns the validated token claims stored by RequireRoles.
func ClaimsFrom(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*token.Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// RequireRoles wraps a protected handler with token validation and a role
// allow-list. An empty allow-list admits any authenticated caller. Every
// token rejection kind maps to a generic 401 so the response leaks nothing
// about why; 403 is reserved for an authenticated caller whose role is not
// in the allow-list.
func RequireRoles(ts *token.Service, users UserResolver, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httpx.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
				return
			}

			claims, err := ts.Validate(r.Context(), raw)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
				return
			}

			id, err := users.ResolveUser(r.Context(), claims.Subject)
			if err != nil {
				log.Printf("middleware: resolve user %s: %v", claims.Subject, err)
				httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}
			if id == nil {
				httpx.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
				return
			}

			if len(allowed) > 0 && !roleAllowed(id.Role, allowed) {
				httpx.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

// SecurityHeaders adds the standard hardening headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// CORS reflects the request origin and answers preflight requests. Both
// services sit behind the same front end, so there is no per-client origin
// list.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging logs method, path, remote address, status and duration for every
// request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Printf("[%s] %s %s %d %v", r.Method, r.URL.Path, r.RemoteAddr, wrapped.statusCode, time.Since(start))
	})
}

// IPRateLimiter keeps one token bucket per client address. Used on the
// public authentication endpoints to slow down credential stuffing.
type IPRateLimiter struct {
	perMinute int
	limiters  map[string]*rate.Limiter
	mu        sync.Mutex
}

// NewIPRateLimiter allows perMinute requests per client address with a burst
// of the same size.
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	return &IPRateLimiter{perMinute: perMinute, limiters: make(map[string]*rate.Limiter)}
}

func (rl *IPRateLimiter) limiter(addr string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[addr]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.perMinute)/60, rl.perMinute)
		rl.limiters[addr] = l
	}
	return l
}

// Limit rejects requests over the per-address allowance with 429.
func (rl *IPRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.limiter(host).Allow() {
			httpx.Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
