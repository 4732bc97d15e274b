package session

import (
	"sync"
)

// Status is the client-observable lifecycle state of the session.
type Status uint8

const (
	// StatusLoading means the session observation is mid-flight: either the
	// initial resolution or a forced refresh has not settled yet.
	StatusLoading Status = iota
	// StatusUnauthenticated means there is no session.
	StatusUnauthenticated
	// StatusAuthenticated means a session exists. Its role may still be
	// absent or the none sentinel while enrichment completes.
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is one observation of the session.
type State struct {
	Status  Status
	Session *Session
}

// Observable is the single shared mutable session state container. Exactly
// one writer, the session framework's own update path (sign-in, sign-out,
// the refresher), calls Set; the route guard and session views only read or
// subscribe. That split keeps two consumers from ever disagreeing about the
// current session.
type Observable struct {
	mu    sync.RWMutex
	state State

	nextSub int
	subs    map[int]chan State
}

// NewObservable creates an observable starting in [StatusLoading].
func NewObservable() *Observable {
	return &Observable{
		state: State{Status: StatusLoading},
		subs:  make(map[int]chan State),
	}
}

// Current returns the latest observation.
func (o *Observable) Current() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Set publishes a new observation to all subscribers. Slow subscribers have
// their stale pending observation replaced rather than blocking the writer.
func (o *Observable) Set(state State) {
	o.mu.Lock()
	o.state = state
	subs := make([]chan State, 0, len(o.subs))
	for _, ch := range o.subs {
		subs = append(subs, ch)
	}
	o.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- state:
		default:
			// Drop the unconsumed observation; only the latest matters.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}

// Subscribe registers an observer. The returned channel receives every state
// change published after the call, starting with the current state. cancel
// unregisters the observer and must be called when the consumer unmounts.
func (o *Observable) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	// Seed before unlocking. The channel is empty with capacity 1, so the
	// send cannot block here, and no Set can slip between registration and
	// the seed to fill the buffer first.
	ch <- o.state
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
	return ch, cancel
}
