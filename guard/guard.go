// Package guard decides whether protected content may be shown to the
// current session.
//
// The decision is an explicit state machine over session observations rather
// than a pile of reactive callbacks: every transition is driven by a
// well-defined event (session status change, role change, requirement
// change) and is unit-testable without any rendering environment.
package guard

import (
	"context"

	"github.com/mwestre/clubgate/role"
	"github.com/mwestre/clubgate/session"
)

// State is a route guard state.
type State uint8

const (
	// StateLoading: the session observation has not settled. Render nothing
	// user-meaningful beyond a loading indicator.
	StateLoading State = iota
	// StateUnauthenticated: no session. Navigate to sign-in; terminal.
	StateUnauthenticated
	// StateNoRole: a session exists but its verified email or role has not
	// propagated yet, or the role is the none sentinel. The guard waits here
	// rather than redirecting: "role absent" is not "role denied".
	StateNoRole
	// StateAuthorized: role resolved and sufficient. Render children.
	StateAuthorized
	// StateRedirecting: role resolved and insufficient. Navigate to the
	// unauthorized page; terminal.
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateNoRole:
		return "authenticated_no_role"
	case StateAuthorized:
		return "authorized"
	case StateRedirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Decision is the guard's answer for one observation. Redirect is set only
// for the two navigation states.
type Decision struct {
	State    State
	Redirect string
}

// Guard gates a protected page with a minimum role requirement.
type Guard struct {
	Required        role.Role
	SignInURL       string
	UnauthorizedURL string
}

// Evaluate maps a session observation to a decision. It is pure: the same
// observation and requirement always produce the same decision, and the
// guard never mutates session state, it only reads it.
func (g Guard) Evaluate(obs session.State) Decision {
	switch obs.Status {
	case session.StatusLoading:
		return Decision{State: StateLoading}
	case session.StatusUnauthenticated:
		return Decision{State: StateUnauthenticated, Redirect: g.SignInURL}
	}

	sess := obs.Session
	if sess == nil || sess.Email == "" || sess.Role == "" || sess.Role == role.None {
		// Tolerate the window between provider sign-in completing and role
		// enrichment finishing.
		return Decision{State: StateNoRole}
	}

	if sess.Role.Satisfies(g.Required) {
		return Decision{State: StateAuthorized}
	}
	return Decision{State: StateRedirecting, Redirect: g.UnauthorizedURL}
}

// Run re-evaluates the guard on every observation from states and reports
// each decision through apply. It returns when ctx is canceled (the wrapped
// component unmounted; no decision is applied after that), when states
// closes, or after a terminal navigation decision. StateAuthorized is
// steady-state, not terminal: the guard keeps watching so a role revoked
// mid-session is honored on the next observation.
func (g Guard) Run(ctx context.Context, states <-chan session.State, apply func(Decision)) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-states:
			if !ok {
				return
			}

			// Re-check cancellation before applying so an unmount racing an
			// in-flight refresh cannot produce a dangling state write.
			select {
			case <-ctx.Done():
				return
			default:
			}

			d := g.Evaluate(obs)
			apply(d)

			if d.State == StateUnauthenticated || d.State == StateRedirecting {
				return
			}
		}
	}
}
