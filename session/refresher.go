package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwestre/clubgate/role"
)

// ErrRefreshFailed wraps refresh endpoint failures. It is diagnostic: the
// caller keeps whatever session state it already has and may retry.
var ErrRefreshFailed = errors.New("session refresh failed")

// UserPayload is the identity half of the refresh endpoint's wire contract.
type UserPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// RefreshResponse is the body of a successful POST to the refresh endpoint.
type RefreshResponse struct {
	Message string      `json:"message"`
	User    UserPayload `json:"user"`
	Role    string      `json:"role"`
}

// Refresher is the client side of the session refresh protocol. Refresh
// performs, in order: invalidate the local session cache, then ask the
// server to re-derive the authoritative session from the trusted token and
// republish it to the observable.
//
// Both halves are required: the session framework may be serving a cached
// token that does not reflect a role changed moments ago in the membership
// store. Dropping the local cache and taking the server's recomputed answer
// closes that gap.
type Refresher struct {
	endpoint string
	client   *http.Client
	cache    *Cache
	states   *Observable
	logger   *slog.Logger

	// Token optionally supplies a bearer token for non-browser clients.
	// When nil, credentials ride on the client's cookie jar.
	Token func() string
}

// NewRefresher creates a Refresher posting to endpoint. client may be nil,
// in which case a 10-second-timeout client is used. cache and states may be
// nil when the caller only wants the network half of the protocol.
func NewRefresher(endpoint string, client *http.Client, cache *Cache, states *Observable, logger *slog.Logger) *Refresher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		endpoint: endpoint,
		client:   client,
		cache:    cache,
		states:   states,
		logger:   logger,
	}
}

// Refresh forces re-derivation of session truth. Calling it repeatedly when
// the session is already fresh is a no-op beyond the network round trip.
//
// Failure handling follows the protocol's error policy: a 401 settles the
// observable to unauthenticated, any other failure is logged, the previous
// observation is restored, and an error is returned so the caller may retry.
// Refresh never panics and never leaves the observable stuck in loading.
func (f *Refresher) Refresh(ctx context.Context) error {
	var prev State
	if f.states != nil {
		prev = f.states.Current()
		f.states.Set(State{Status: StatusLoading, Session: prev.Session})
	}
	if f.cache != nil {
		f.cache.Clear()
	}

	resp, err := f.post(ctx)
	if err != nil {
		f.logger.Warn("session refresh request failed", "err", err)
		f.restore(prev)
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized:
		if f.states != nil {
			f.states.Set(State{Status: StatusUnauthenticated})
		}
		return nil
	default:
		f.logger.Warn("session refresh rejected", "status", resp.StatusCode)
		f.restore(prev)
		return fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}

	var body RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		f.logger.Warn("session refresh response malformed", "err", err)
		f.restore(prev)
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	now := time.Now()
	sess := &Session{
		Subject:   body.User.ID,
		Name:      body.User.Name,
		Email:     body.User.Email,
		Role:      role.Parse(body.Role),
		CreatedAt: now.Unix(),
	}
	if prev.Session != nil {
		sess.ID = prev.Session.ID
		sess.ExpiresAt = prev.Session.ExpiresAt
	}

	if f.cache != nil {
		f.cache.Set(sess)
	}
	if f.states != nil {
		f.states.Set(State{Status: StatusAuthenticated, Session: sess})
	}

	f.logger.Debug("session refreshed", "email", sess.Email, "role", sess.Role.String())
	return nil
}

func (f *Refresher) post(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.Token != nil {
		if tok := f.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return f.client.Do(req)
}

func (f *Refresher) restore(prev State) {
	if f.states != nil {
		f.states.Set(prev)
	}
}
