// Package customerms implements the customer-record service: creation with
// validation and geocoding, lookups, filtered search with pagination, and
// dry-run validation. Every endpoint is role-gated against the shared users
// table.
package customerms

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/levelsliving/internal/middleware"
	"github.com/example/levelsliving/internal/revocation"
	"github.com/example/levelsliving/internal/roles"
	"github.com/example/levelsliving/internal/token"
)

// App wires the service's components.
type App struct {
	store           Store
	users           middleware.UserResolver
	tokens          *token.Service
	revocations     revocation.Registry
	defaultPageSize int
	maxPageSize     int
}

// NewApp builds the service. users is the resolver over the shared users
// table; for the postgres adapter the store itself serves both roles.
func NewApp(store Store, users middleware.UserResolver, tokens *token.Service, revocations revocation.Registry, defaultPageSize, maxPageSize int) *App {
	return &App{
		store:           store,
		users:           users,
		tokens:          tokens,
		revocations:     revocations,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Router builds the HTTP surface. Write and search operations are limited
// to back-office roles; single-record reads are open to every role, so
// drivers and warehouse staff can pull delivery addresses.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS)

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	office := middleware.RequireRoles(a.tokens, a.users, roles.Admin, roles.HQ, roles.CustomerService)
	anyRole := middleware.RequireRoles(a.tokens, a.users, roles.All...)

	r.Handle("/customers", office(http.HandlerFunc(a.handleCreate))).Methods(http.MethodPost)
	r.Handle("/customers", office(http.HandlerFunc(a.handleSearch))).Methods(http.MethodGet)
	r.Handle("/customers/validate", office(http.HandlerFunc(a.handleValidate))).Methods(http.MethodPost)
	r.Handle("/customers/contact/{contact}", anyRole(http.HandlerFunc(a.handleGetByContact))).Methods(http.MethodGet)
	r.Handle("/customers/{id}", anyRole(http.HandlerFunc(a.handleGetByID))).Methods(http.MethodGet)

	return r
}

func (a *App) pingStore(ctx context.Context) bool {
	if p, ok := a.store.(interface{ Ping(context.Context) bool }); ok {
		return p.Ping(ctx)
	}
	_, _, err := a.store.Search(ctx, SearchQuery{Limit: 1})
	return err == nil
}
