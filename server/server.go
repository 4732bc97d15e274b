// Package server exposes the session refresh protocol over HTTP. The
// refresh endpoint is the only wire contract owned by the authorization
// core; record CRUD lives with the page handlers that consume the directory.
package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/internal/audit"
	"github.com/mwestre/clubgate/internal/metrics"
	"github.com/mwestre/clubgate/role"
	"github.com/mwestre/clubgate/session"
)

// Handler serves the auth endpoints.
type Handler struct {
	resolver *identity.Resolver
	roles    role.Source
	store    *session.Store
	lifetime time.Duration
	audit    *audit.Dispatcher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Config wires a Handler.
type Config struct {
	Resolver *identity.Resolver
	Roles    role.Source
	Store    *session.Store
	// Lifetime bounds sessions minted by the refresh endpoint.
	// Defaults to 24 hours.
	Lifetime time.Duration
	Audit    *audit.Dispatcher
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		resolver: cfg.Resolver,
		roles:    cfg.Roles,
		store:    cfg.Store,
		lifetime: cfg.Lifetime,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Routes returns the auth router, intended to be mounted at /api/auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/refresh", h.handleRefresh)
	r.Get("/session", h.handleSession)
	return r
}
