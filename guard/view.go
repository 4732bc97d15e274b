package guard

import (
	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/role"
	"github.com/mwestre/clubgate/session"
)

// View is the session-gated convenience surface for pages that only need
// "who is signed in" plus a redirect when the caller does not belong here.
//
// View uses the same hierarchical Satisfies comparison as [Guard]. An
// earlier revision compared roles by exact equality here, which made an
// admin fail a viewer-gated page; the two comparison policies are now
// unified.
type View struct {
	Identity        *identity.Identity
	IsLoading       bool
	IsAuthenticated bool
	// Redirect is the navigation target when the caller must leave: the
	// sign-in page when unauthenticated, the unauthorized page when
	// unprovisioned or below the required role. Empty otherwise.
	Redirect string
}

// NewView derives a View from the current session observation. required may
// be [role.None] for pages that only need authentication.
func NewView(obs session.State, required role.Role, signInURL, unauthorizedURL string) View {
	switch obs.Status {
	case session.StatusLoading:
		return View{IsLoading: true}
	case session.StatusUnauthenticated:
		return View{Redirect: signInURL}
	}

	sess := obs.Session
	if sess == nil || sess.Email == "" {
		return View{IsLoading: true}
	}

	ident := sess.Identity()
	view := View{Identity: &ident, IsAuthenticated: true}

	// Unlike the route guard, the view does not wait out the enrichment
	// window: an explicit none sentinel sends the caller to the
	// "access denied, contact an administrator" page immediately.
	if sess.Role == role.None || !sess.Role.Satisfies(required) {
		view.Redirect = unauthorizedURL
	}
	return view
}
