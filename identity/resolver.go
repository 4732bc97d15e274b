// Package identity resolves the verified identity of an inbound request from
// its signed session token.
//
// Resolution is stateless and performed fresh on every call. Nothing is
// cached across requests: the resolver exists precisely so that mutating
// handlers can stamp audit fields with an identity that cannot go stale.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultCookieName = "club_session"

var (
	// ErrNoToken is returned when the request carries no session token.
	ErrNoToken = errors.New("no session token")
	// ErrTokenInvalid is returned when the token is malformed, expired, or
	// fails signature verification.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrSecretMissing is returned when the resolver has no signing secret.
	// Resolution fails closed in that case; it never falls back to trusting
	// unverified claims.
	ErrSecretMissing = errors.New("session token secret not configured")
)

// Identity is the verified caller identity embedded in the session token.
type Identity struct {
	Subject string `json:"sub"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
}

// Claims is the session token claim set issued by the identity provider.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Config configures token verification.
type Config struct {
	// Secret is the HS256 signing secret shared with the identity provider.
	Secret []byte
	// CookieName is the HTTP-only cookie carrying the token.
	// Defaults to "club_session".
	CookieName string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	// TTL bounds tokens minted by Issue. Verification uses the token's own
	// expiry claim.
	TTL time.Duration
}

// Resolver verifies session tokens and extracts the caller identity.
// A Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	config Config
}

// NewResolver validates cfg and returns a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretMissing
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Resolver{config: cfg}, nil
}

// CookieName returns the cookie the resolver reads tokens from.
func (r *Resolver) CookieName() string {
	return r.config.CookieName
}

// Resolve extracts and verifies the session token from req.
//
// Failures are non-fatal signals, not faults: callers should treat any error
// as "anonymous caller" and decide for themselves whether to reject the
// operation.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	token, err := r.tokenFromRequest(req)
	if err != nil {
		return Identity{}, err
	}
	return r.Verify(token)
}

// Verify checks the raw token string against the configured secret and
// returns the embedded identity.
func (r *Resolver) Verify(token string) (Identity, error) {
	if len(r.config.Secret) == 0 {
		return Identity{}, ErrSecretMissing
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if r.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(r.config.Leeway))
	}
	if r.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(r.config.Issuer))
	}
	if r.config.Audience != "" {
		options = append(options, jwt.WithAudience(r.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return r.config.Secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Email) == "" {
		return Identity{}, fmt.Errorf("%w: missing email claim", ErrTokenInvalid)
	}

	return Identity{
		Subject: claims.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
	}, nil
}

// CallerEmail is the audit-stamping convenience: it returns the verified
// email of the caller, or "" when the token is absent, malformed, or fails
// verification. It never panics and never returns an unverified value.
func (r *Resolver) CallerEmail(req *http.Request) string {
	ident, err := r.Resolve(req)
	if err != nil {
		return ""
	}
	return ident.Email
}

// Issue signs a session token for the given identity. The admin console
// relies on the identity provider to mint tokens in production; Issue exists
// for tests and local development surfaces.
func (r *Resolver) Issue(ident Identity, now time.Time) (string, error) {
	if len(r.config.Secret) == 0 {
		return "", ErrSecretMissing
	}
	if strings.TrimSpace(ident.Email) == "" {
		return "", errors.New("identity email required")
	}

	claims := Claims{
		Name:  ident.Name,
		Email: ident.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.config.TTL)),
			Issuer:    r.config.Issuer,
		},
	}
	if r.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{r.config.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.config.Secret)
}

func (r *Resolver) tokenFromRequest(req *http.Request) (string, error) {
	if req == nil {
		return "", ErrNoToken
	}

	if cookie, err := req.Cookie(r.config.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	// Bearer fallback for non-browser callers (CLI, tests).
	const bearer = "Bearer "
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, bearer) && len(h) > len(bearer) {
		return h[len(bearer):], nil
	}

	return "", ErrNoToken
}
