package clubgate

import "errors"

var (
	// ErrRedisRequired is returned by Build when no Redis client was given.
	ErrRedisRequired = errors.New("redis client required")
	// ErrRoleSourceRequired is returned by Build when neither a pgx pool nor
	// an explicit role source was given.
	ErrRoleSourceRequired = errors.New("role source required")
	// ErrBuilderUsed is returned when Build is called twice on one builder.
	ErrBuilderUsed = errors.New("builder already used")
)
