// Package session owns the session state of the admin console: the
// authoritative Redis-backed record, a short-lived in-process read cache, an
// observable state container for reactive consumers, and the forced-refresh
// trigger that closes the gap between a cached session and a role changed
// out-of-band in the membership store.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/role"
)

const schemaVersion = 1

// ErrSessionCorrupt is returned when a stored session blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

// Session is the server-trusted record of who a caller is and what role they
// currently hold.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"sub"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	Role      role.Role `json:"role"`
	CreatedAt int64     `json:"created_at"`
	ExpiresAt int64     `json:"expires_at"`
}

// New mints a session for a verified identity with the given role and
// lifetime.
func New(ident identity.Identity, r role.Role, lifetime time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Subject:   ident.Subject,
		Name:      ident.Name,
		Email:     ident.Email,
		Role:      r,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
	}
}

// Identity returns the identity half of the session.
func (s *Session) Identity() identity.Identity {
	return identity.Identity{Subject: s.Subject, Name: s.Name, Email: s.Email}
}

// Expired reports whether the session's absolute lifetime has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && s.ExpiresAt <= now.Unix()
}

type envelope struct {
	V int `json:"v"`
	Session
}

// Encode serializes a session for storage.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	return json.Marshal(envelope{V: schemaVersion, Session: *s})
}

// Decode deserializes a stored session blob. The role field is re-validated
// at this trust boundary: anything outside the declared role set is
// downgraded to [role.None] rather than propagated.
func Decode(data []byte) (*Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if env.V != schemaVersion {
		return nil, fmt.Errorf("%w: unknown schema version %d", ErrSessionCorrupt, env.V)
	}
	sess := env.Session
	sess.Role = role.Parse(string(sess.Role))
	return &sess, nil
}
