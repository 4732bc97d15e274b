package clubgate

import (
	"errors"
	"time"

	"github.com/mwestre/clubgate/identity"
)

// Config is the engine configuration. Populate it once before Build;
// the engine treats it as immutable afterwards.
type Config struct {
	Identity identity.Config
	Session  SessionConfig
	Routes   RoutesConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// SessionConfig controls the authoritative store and the in-process cache.
type SessionConfig struct {
	// RedisPrefix namespaces session keys. Defaults to "cg".
	RedisPrefix string
	// Lifetime bounds sessions minted by the refresh endpoint.
	Lifetime time.Duration
	// CacheTTL bounds how long a session may be served from the in-process
	// cache before the authoritative store is consulted again. This is the
	// staleness ceiling between forced refreshes.
	CacheTTL     time.Duration
	CacheMaxSize int
}

// RoutesConfig holds the fixed navigation targets and the mount point of the
// auth endpoints.
type RoutesConfig struct {
	SignInURL       string
	UnauthorizedURL string
	// BasePath is where Routes() is expected to be mounted.
	BasePath string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request path when the
	// buffer is saturated.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns a production-leaning configuration. The identity
// secret has no default: its absence must fail closed, never fall back.
func DefaultConfig() Config {
	return Config{
		Identity: identity.Config{
			CookieName: "club_session",
			Leeway:     30 * time.Second,
			TTL:        time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix:  "cg",
			Lifetime:     24 * time.Hour,
			CacheTTL:     5 * time.Minute,
			CacheMaxSize: 500,
		},
		Routes: RoutesConfig{
			SignInURL:       "/signin",
			UnauthorizedURL: "/unauthorized",
			BasePath:        "/api/auth",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks invariants that Build depends on. Identity configuration
// is validated separately by the resolver constructor.
func (c Config) Validate() error {
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if c.Session.CacheTTL < 0 {
		return errors.New("session cache TTL must not be negative")
	}
	if c.Session.CacheMaxSize < 0 {
		return errors.New("session cache size must not be negative")
	}
	if c.Routes.SignInURL == "" || c.Routes.UnauthorizedURL == "" {
		return errors.New("redirect targets must be configured")
	}
	return nil
}
