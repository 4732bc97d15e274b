// Package clubgate is the authorization and session-freshness core of the
// club admin console.
//
// The problem it exists for: role assignment changes out-of-band (an
// administrator edits a member's row) while a long-lived session token
// keeps presenting the old role. clubgate guarantees the *current* role is
// honored everywhere by combining four pieces:
//
//   - identity: per-request verification of the signed session token,
//     stateless and uncached, used by mutating handlers for audit stamping.
//   - role: a closed, totally ordered role set compared by level, never by
//     string equality.
//   - session: the single-writer observable session state, its Redis-backed
//     authoritative record, and the forced-refresh protocol that invalidates
//     stale caches and re-derives truth from the trusted token.
//   - guard: the route guard state machine and middleware that gate
//     protected surfaces on the resolved role.
//
// Build an [Engine] with [New]:
//
//	engine, err := clubgate.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithPool(pool).
//		Build()
package clubgate
