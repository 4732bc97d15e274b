package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("test-secret-0123456789abcdefghij")

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	r, err := NewResolver(Config{Secret: testSecret, TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return r
}

func requestWithCookie(resolver *Resolver, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: resolver.CookieName(), Value: token})
	return req
}

func TestResolveRoundTrip(t *testing.T) {
	resolver := newTestResolver(t)

	token, err := resolver.Issue(Identity{
		Subject: "auth0|u1",
		Name:    "Alice",
		Email:   "alice@club.test",
	}, time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	ident, err := resolver.Resolve(requestWithCookie(resolver, token))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ident.Email != "alice@club.test" || ident.Subject != "auth0|u1" || ident.Name != "Alice" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestResolveMissingToken(t *testing.T) {
	resolver := newTestResolver(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if _, err := resolver.Resolve(req); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestResolveTamperedToken(t *testing.T) {
	resolver := newTestResolver(t)

	token, err := resolver.Issue(Identity{Email: "alice@club.test"}, time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Flip the payload so the signature no longer matches.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = resolver.Resolve(requestWithCookie(resolver, tampered))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestResolveWrongSecret(t *testing.T) {
	resolver := newTestResolver(t)

	other, err := NewResolver(Config{Secret: []byte("another-secret-0123456789abcdef!"), TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	token, err := other.Issue(Identity{Email: "mallory@club.test"}, time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := resolver.Resolve(requestWithCookie(resolver, token)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestResolveExpiredToken(t *testing.T) {
	resolver := newTestResolver(t)

	token, err := resolver.Issue(Identity{Email: "alice@club.test"}, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := resolver.Resolve(requestWithCookie(resolver, token)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestMissingSecretFailsClosed(t *testing.T) {
	if _, err := NewResolver(Config{}); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}

	// Even a hand-built resolver with no secret must refuse to verify.
	bare := &Resolver{}
	if _, err := bare.Verify("whatever"); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing from Verify, got %v", err)
	}
}

func TestCallerEmailNeverFails(t *testing.T) {
	resolver := newTestResolver(t)

	if email := resolver.CallerEmail(nil); email != "" {
		t.Fatalf("nil request: got %q, want empty", email)
	}

	req := requestWithCookie(resolver, "garbage.token.value")
	if email := resolver.CallerEmail(req); email != "" {
		t.Fatalf("garbage token: got %q, want empty", email)
	}

	token, err := resolver.Issue(Identity{Email: "bob@club.test"}, time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if email := resolver.CallerEmail(requestWithCookie(resolver, token)); email != "bob@club.test" {
		t.Fatalf("valid token: got %q", email)
	}
}

func TestBearerFallback(t *testing.T) {
	resolver := newTestResolver(t)

	token, err := resolver.Issue(Identity{Email: "cli@club.test"}, time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	ident, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ident.Email != "cli@club.test" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestIssueRequiresEmail(t *testing.T) {
	resolver := newTestResolver(t)
	if _, err := resolver.Issue(Identity{Subject: "auth0|u1"}, time.Now()); err == nil {
		t.Fatal("expected error for identity without email")
	}
}
