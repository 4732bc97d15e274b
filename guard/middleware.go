package guard

import (
	"context"
	"net/http"

	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/role"
)

type callerContextKey struct{}

// Caller is the verified identity and current role of an authorized request,
// injected by [RequireRole] for handlers to stamp audit fields from.
type Caller struct {
	Identity identity.Identity
	Role     role.Role
}

// CallerFromContext extracts the Caller placed by [RequireRole].
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(callerContextKey{}).(*Caller)
	return c, ok
}

// RequireRole gates an API route behind a minimum role. The role is looked
// up fresh from the authoritative source on every request; the middleware
// never trusts a role carried in any client-side state.
//
//	401: no verified identity (token absent, malformed, or tampered)
//	403: authenticated but unprovisioned, or role below the requirement
//	503: the role source could not answer
func RequireRole(resolver *identity.Resolver, roles role.Source, required role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil || roles == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ident, err := resolver.Resolve(r)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			current, err := roles.RoleByEmail(r.Context(), ident.Email)
			if err != nil {
				http.Error(w, "role lookup failed", http.StatusServiceUnavailable)
				return
			}

			if current == role.None || !current.Satisfies(required) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			caller := &Caller{Identity: ident, Role: current}
			ctx := context.WithValue(r.Context(), callerContextKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
