package clubgate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwestre/clubgate/directory"
	"github.com/mwestre/clubgate/guard"
	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/internal/audit"
	"github.com/mwestre/clubgate/internal/metrics"
	"github.com/mwestre/clubgate/role"
	"github.com/mwestre/clubgate/server"
	"github.com/mwestre/clubgate/session"
)

// Engine ties the authorization core together. It is safe for concurrent
// use; all mutable session state lives behind the single-writer observable
// and the Redis store.
type Engine struct {
	config    Config
	resolver  *identity.Resolver
	store     *session.Store
	cache     *session.Cache
	states    *session.Observable
	roles     role.Source
	directory *directory.Directory
	audit     *audit.Dispatcher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Resolver returns the per-request identity resolver.
func (e *Engine) Resolver() *identity.Resolver { return e.resolver }

// Sessions returns the authoritative session store.
func (e *Engine) Sessions() *session.Store { return e.store }

// Cache returns the in-process session cache.
func (e *Engine) Cache() *session.Cache { return e.cache }

// States returns the observable session state container. Consumers must
// treat it as read-only; only the engine's own flows write to it.
func (e *Engine) States() *session.Observable { return e.states }

// Directory returns the membership record store adapter, or nil when the
// engine was built without a Postgres pool.
func (e *Engine) Directory() *directory.Directory { return e.directory }

// Guard returns a route guard for a page with the given minimum role,
// wired to the configured redirect targets.
func (e *Engine) Guard(required role.Role) guard.Guard {
	return guard.Guard{
		Required:        required,
		SignInURL:       e.config.Routes.SignInURL,
		UnauthorizedURL: e.config.Routes.UnauthorizedURL,
	}
}

// SessionView derives the simple session-gated view from the current
// observation.
func (e *Engine) SessionView(required role.Role) guard.View {
	return guard.NewView(
		e.states.Current(),
		required,
		e.config.Routes.SignInURL,
		e.config.Routes.UnauthorizedURL,
	)
}

// RequireRole returns middleware gating an API route behind a minimum role.
// Gate outcomes are counted in the engine metrics. The authorized counter
// moves when the gate forwards the request, regardless of what status the
// wrapped handler later writes; the 401/403 counters reflect only the gate's
// own rejections.
func (e *Engine) RequireRole(required role.Role) func(http.Handler) http.Handler {
	mw := guard.RequireRole(e.resolver, e.roles, required)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			forwarded := false
			counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				forwarded = true
				e.metrics.Inc(metrics.GuardAuthorized)
				next.ServeHTTP(w, r)
			})

			sw := &statusWriter{ResponseWriter: w}
			mw(counted).ServeHTTP(sw, r)
			if forwarded {
				return
			}

			switch sw.status {
			case http.StatusUnauthorized:
				e.metrics.Inc(metrics.GuardUnauthenticated)
			case http.StatusForbidden:
				e.metrics.Inc(metrics.GuardRedirected)
			}
			// 503 is a role source outage, not a gate decision.
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

// Routes returns the auth endpoints, to be mounted at Routes.BasePath.
func (e *Engine) Routes() chi.Router {
	return server.New(server.Config{
		Resolver: e.resolver,
		Roles:    e.roles,
		Store:    e.store,
		Lifetime: e.config.Session.Lifetime,
		Audit:    e.audit,
		Metrics:  e.metrics,
		Logger:   e.logger,
	}).Routes()
}

// Refresher returns the client-side refresh trigger posting to the given
// absolute refresh URL. client carries the caller's credentials (cookie jar
// or bearer token); nil gets a default client.
func (e *Engine) Refresher(refreshURL string, client *http.Client) *session.Refresher {
	return session.NewRefresher(refreshURL, client, e.cache, e.states, e.logger)
}

// CallerEmail resolves the verified email for audit stamping, or "" when
// the request carries no valid token.
func (e *Engine) CallerEmail(r *http.Request) string {
	email := e.resolver.CallerEmail(r)
	if email == "" {
		e.metrics.Inc(metrics.ResolveFailure)
	}
	return email
}

// SignOut destroys a session everywhere: the authoritative store, the
// in-process cache, and the observable.
func (e *Engine) SignOut(ctx context.Context, sessionID string) error {
	err := e.store.Delete(ctx, sessionID)
	e.cache.Invalidate(sessionID)
	e.states.Set(session.State{Status: session.StatusUnauthenticated})

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    "session.signout",
		SessionID: sessionID,
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.audit.Emit(ctx, event)

	return err
}

// MetricsSnapshot returns the current counter values.
func (e *Engine) MetricsSnapshot() map[string]uint64 {
	return e.metrics.Snapshot()
}

// Close drains the audit dispatcher. The Redis client and Postgres pool are
// owned by the caller and are not closed here.
func (e *Engine) Close() {
	e.audit.Close()
}
