// Package role defines the closed set of privilege levels used by the club
// admin console and the total order over them.
//
// Roles are compared by numeric level, never by string equality: a higher
// role always satisfies a lower requirement. Any value read from a token,
// session blob, or database row must pass through [Parse] so that unknown
// strings are downgraded to [None] instead of leaking into comparisons.
package role

import "context"

// Role is a named privilege level.
type Role string

const (
	// None marks a caller who is authenticated but not provisioned with
	// any role. It satisfies no non-trivial requirement.
	None Role = "none"
	// Viewer may read membership and finance records.
	Viewer Role = "viewer"
	// Editor may additionally create and modify records.
	Editor Role = "editor"
	// Admin holds every capability, including role administration.
	Admin Role = "admin"
)

var levels = map[Role]int{
	None:   0,
	Viewer: 1,
	Editor: 2,
	Admin:  3,
}

// All returns the declared roles in ascending privilege order.
func All() []Role {
	return []Role{None, Viewer, Editor, Admin}
}

// Parse maps a raw string onto the closed role set. Unknown or empty input
// downgrades to [None]; it never produces an undeclared role.
func Parse(s string) Role {
	r := Role(s)
	if _, ok := levels[r]; ok {
		return r
	}
	return None
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}

// Level returns the numeric privilege level of r. Undeclared roles map to 0,
// the same level as [None].
func (r Role) Level() int {
	return levels[r]
}

// Satisfies reports whether r meets the given minimum requirement,
// defined as Level(r) >= Level(required).
func (r Role) Satisfies(required Role) bool {
	return r.Level() >= required.Level()
}

func (r Role) String() string {
	return string(r)
}

// Source yields the authoritative role for a verified email address.
// Implementations must return [None] with a nil error for callers that are
// known to the identity provider but have no row in the membership store.
type Source interface {
	RoleByEmail(ctx context.Context, email string) (Role, error)
}
