// Package userms implements the user/authentication service: registration,
// credential verification with brute-force lockout, token issuance and
// revocation, and the session audit registry.
package userms

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/levelsliving/internal/middleware"
	"github.com/example/levelsliving/internal/revocation"
	"github.com/example/levelsliving/internal/roles"
	"github.com/example/levelsliving/internal/token"
)

// App wires the service's components. All collaborators are constructed at
// startup and injected; App owns none of their lifecycles.
type App struct {
	store       Store
	auth        *Authenticator
	tokens      *token.Service
	revocations revocation.Registry
	limiter     *middleware.IPRateLimiter
}

// NewApp builds the service. revocations may be nil only in tests.
func NewApp(store Store, auth *Authenticator, tokens *token.Service, revocations revocation.Registry, limiter *middleware.IPRateLimiter) *App {
	return &App{
		store:       store,
		auth:        auth,
		tokens:      tokens,
		revocations: revocations,
		limiter:     limiter,
	}
}

// ResolveUser implements middleware.UserResolver against the credential
// store. Deactivated accounts resolve to nothing, so their outstanding
// tokens stop working immediately.
func (a *App) ResolveUser(ctx context.Context, userID string) (*middleware.Identity, error) {
	u, err := a.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	return &middleware.Identity{ID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// Router builds the HTTP surface.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS)

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	public := func(h http.HandlerFunc) http.Handler {
		if a.limiter != nil {
			return a.limiter.Limit(h)
		}
		return h
	}
	r.Handle("/auth/register", public(a.handleRegister)).Methods(http.MethodPost)
	r.Handle("/auth/login", public(a.handleLogin)).Methods(http.MethodPost)

	authed := middleware.RequireRoles(a.tokens, a)
	r.Handle("/auth/logout", authed(http.HandlerFunc(a.handleLogout))).Methods(http.MethodPost)
	r.Handle("/auth/profile", authed(http.HandlerFunc(a.handleProfile))).Methods(http.MethodGet)
	r.Handle("/auth/validate", authed(http.HandlerFunc(a.handleValidate))).Methods(http.MethodPost)

	elevated := middleware.RequireRoles(a.tokens, a, roles.Admin, roles.HQ)
	r.Handle("/auth/users", elevated(http.HandlerFunc(a.handleListUsers))).Methods(http.MethodGet)

	return r
}
