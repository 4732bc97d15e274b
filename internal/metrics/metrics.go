// Package metrics keeps a small set of in-process counters for the
// authorization core. No exporters are wired; the snapshot is surfaced
// through the engine for whoever wants to scrape it.
package metrics

import "sync/atomic"

// ID identifies a counter.
type ID uint8

const (
	RefreshSuccess ID = iota
	RefreshUnauthorized
	RefreshFailure
	GuardAuthorized
	GuardRedirected
	GuardUnauthenticated
	ResolveFailure

	idCount
)

var names = [idCount]string{
	RefreshSuccess:       "refresh_success",
	RefreshUnauthorized:  "refresh_unauthorized",
	RefreshFailure:       "refresh_failure",
	GuardAuthorized:      "guard_authorized",
	GuardRedirected:      "guard_redirected",
	GuardUnauthenticated: "guard_unauthenticated",
	ResolveFailure:       "resolve_failure",
}

// Metrics holds atomic counters. A nil *Metrics is valid and counts nothing.
type Metrics struct {
	enabled  bool
	counters [idCount]atomic.Uint64
}

func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *Metrics) Get(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a copy of all counters keyed by name.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, idCount)
	for id := ID(0); id < idCount; id++ {
		out[names[id]] = m.Get(id)
	}
	return out
}
