package guard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/role"
)

// staticSource answers role lookups from a fixed table, with an optional
// forced error to simulate an unreachable directory.
type staticSource struct {
	roles map[string]role.Role
	err   error
}

func (s *staticSource) RoleByEmail(_ context.Context, email string) (role.Role, error) {
	if s.err != nil {
		return role.None, s.err
	}
	return s.roles[email], nil
}

func newMiddlewareFixture(t *testing.T, roles role.Source, required role.Role) (*identity.Resolver, http.Handler) {
	t.Helper()

	resolver, err := identity.NewResolver(identity.Config{
		Secret: []byte("test-secret-0123456789abcdefghij"),
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			t.Error("authorized request reached the handler without a Caller")
			return
		}
		w.Header().Set("X-Caller-Email", caller.Identity.Email)
		w.Header().Set("X-Caller-Role", caller.Role.String())
	})
	return resolver, RequireRole(resolver, roles, required)(inner)
}

func protectedRequest(t *testing.T, resolver *identity.Resolver, email string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/members", nil)
	if email == "" {
		return req
	}
	token, err := resolver.Issue(identity.Identity{Subject: "auth0|" + email, Email: email}, time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: resolver.CookieName(), Value: token})
	return req
}

func TestRequireRoleNoToken(t *testing.T) {
	_, handler := newMiddlewareFixture(t, &staticSource{}, role.Viewer)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/members", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRoleUnprovisioned(t *testing.T) {
	src := &staticSource{roles: map[string]role.Role{}}
	resolver, handler := newMiddlewareFixture(t, src, role.Viewer)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, protectedRequest(t, resolver, "stranger@club.test"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireRoleInsufficient(t *testing.T) {
	src := &staticSource{roles: map[string]role.Role{"vi@club.test": role.Viewer}}
	resolver, handler := newMiddlewareFixture(t, src, role.Admin)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, protectedRequest(t, resolver, "vi@club.test"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireRoleSourceUnavailable(t *testing.T) {
	src := &staticSource{err: errors.New("connection refused")}
	resolver, handler := newMiddlewareFixture(t, src, role.Viewer)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, protectedRequest(t, resolver, "vi@club.test"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRequireRoleInjectsCaller(t *testing.T) {
	src := &staticSource{roles: map[string]role.Role{"boss@club.test": role.Admin}}
	resolver, handler := newMiddlewareFixture(t, src, role.Editor)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, protectedRequest(t, resolver, "boss@club.test"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Caller-Email"); got != "boss@club.test" {
		t.Fatalf("caller email = %q", got)
	}
	if got := rec.Header().Get("X-Caller-Role"); got != "admin" {
		t.Fatalf("caller role = %q", got)
	}
}

func TestRequireRoleFreshLookupEveryRequest(t *testing.T) {
	// The middleware never trusts a previously granted role; demoting a user
	// takes effect on their very next request.
	src := &staticSource{roles: map[string]role.Role{"ed@club.test": role.Editor}}
	resolver, handler := newMiddlewareFixture(t, src, role.Editor)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, protectedRequest(t, resolver, "ed@club.test"))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}

	src.roles["ed@club.test"] = role.Viewer

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, protectedRequest(t, resolver, "ed@club.test"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("after demotion: status = %d, want 403", rec.Code)
	}
}

func TestRequireRoleNilDependenciesFailClosed(t *testing.T) {
	handler := RequireRole(nil, nil, role.Viewer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with nil dependencies")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
