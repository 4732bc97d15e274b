package clubgate

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mwestre/clubgate/directory"
	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/internal/audit"
	"github.com/mwestre/clubgate/internal/metrics"
	"github.com/mwestre/clubgate/role"
	"github.com/mwestre/clubgate/session"
)

// Builder assembles an [Engine]. Obtain one with [New], configure it, and
// call Build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	pool   *pgxpool.Pool

	roles     role.Source
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the session store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPool sets the Postgres pool for the membership directory. The
// directory then serves both role lookups and stamped record access.
func (b *Builder) WithPool(pool *pgxpool.Pool) *Builder {
	b.pool = pool
	return b
}

// WithRoleSource overrides the authoritative role source. Takes precedence
// over the pgx-backed directory; useful for tests and non-Postgres deployments.
func (b *Builder) WithRoleSource(src role.Source) *Builder {
	b.roles = src
	return b
}

// WithAuditSink sets the destination for audit events. Defaults to
// structured logging via slog when auditing is enabled and no sink is given.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and assembles the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, ErrRedisRequired
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	resolver, err := identity.NewResolver(b.config.Identity)
	if err != nil {
		return nil, err
	}

	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.auditSinkOrDefault(logger))

	var dir *directory.Directory
	roles := b.roles
	if roles == nil {
		if b.pool == nil {
			return nil, ErrRoleSourceRequired
		}
		dir = directory.New(b.pool,
			directory.WithAudit(dispatcher),
			directory.WithLogger(logger),
		)
		roles = dir
	} else if b.pool != nil {
		dir = directory.New(b.pool,
			directory.WithAudit(dispatcher),
			directory.WithLogger(logger),
		)
	}

	return &Engine{
		config:    b.config,
		resolver:  resolver,
		store:     session.NewStore(b.redis, b.config.Session.RedisPrefix),
		cache:     session.NewCache(b.config.Session.CacheTTL, b.config.Session.CacheMaxSize),
		states:    session.NewObservable(),
		roles:     roles,
		directory: dir,
		audit:     dispatcher,
		metrics:   metrics.New(b.config.Metrics.Enabled),
		logger:    logger,
	}, nil
}

func (b *Builder) auditSinkOrDefault(logger *slog.Logger) AuditSink {
	if b.auditSink != nil {
		return b.auditSink
	}
	return audit.NewSlogSink(logger)
}
