package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned when no session exists for the given ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Store is the Redis-backed authoritative session store. Only the refresh
// protocol and sign-in/sign-out flows write through it; caches and observers
// downstream hold read-only copies.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store with the given key prefix ("cg" when empty).
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "cg"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

// Save persists sess with the given TTL, replacing any previous record under
// the same ID.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get retrieves a session by ID. Expired records are deleted on read and
// reported as [ErrSessionNotFound].
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID

	if sess.Expired(time.Now()) {
		if err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// Delete removes a session. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
