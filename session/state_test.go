package session

import (
	"testing"
	"time"

	"github.com/mwestre/clubgate/role"
)

func TestObservableStartsLoading(t *testing.T) {
	obs := NewObservable()
	if got := obs.Current().Status; got != StatusLoading {
		t.Fatalf("initial status = %v, want loading", got)
	}
}

func TestObservableSetAndCurrent(t *testing.T) {
	obs := NewObservable()
	sess := testSession("alice@club.test", role.Viewer)

	obs.Set(State{Status: StatusAuthenticated, Session: sess})

	state := obs.Current()
	if state.Status != StatusAuthenticated || state.Session != sess {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestSubscribeReceivesCurrentThenUpdates(t *testing.T) {
	obs := NewObservable()
	ch, cancel := obs.Subscribe()
	defer cancel()

	first := <-ch
	if first.Status != StatusLoading {
		t.Fatalf("first observation = %v, want loading", first.Status)
	}

	obs.Set(State{Status: StatusUnauthenticated})

	select {
	case next := <-ch:
		if next.Status != StatusUnauthenticated {
			t.Fatalf("second observation = %v, want unauthenticated", next.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive update")
	}
}

func TestSlowSubscriberGetsLatestNotStale(t *testing.T) {
	obs := NewObservable()
	ch, cancel := obs.Subscribe()
	defer cancel()

	<-ch // drain the initial observation

	// Publish twice without the subscriber consuming in between; the stale
	// pending observation must be replaced by the newest one.
	obs.Set(State{Status: StatusUnauthenticated})
	obs.Set(State{Status: StatusAuthenticated, Session: testSession("a@club.test", role.Admin)})

	got := <-ch
	if got.Status != StatusAuthenticated {
		t.Fatalf("slow subscriber saw %v, want the latest (authenticated)", got.Status)
	}
}

func TestSubscribeDuringConcurrentSet(t *testing.T) {
	// A Set racing the subscription must never leave the seed undelivered
	// and must never deliver the stale pre-Set observation after the newer
	// one.
	sess := testSession("a@club.test", role.Admin)

	for i := 0; i < 500; i++ {
		obs := NewObservable()

		published := make(chan struct{})
		go func() {
			obs.Set(State{Status: StatusAuthenticated, Session: sess})
			close(published)
		}()

		ch, cancel := obs.Subscribe()

		var first State
		select {
		case first = <-ch:
		case <-time.After(time.Second):
			t.Fatal("seed delivery blocked during a concurrent Set")
		}
		<-published

		if first.Status == StatusAuthenticated {
			// The latest observation was already seen; nothing older may
			// follow it.
			select {
			case again := <-ch:
				if again.Status == StatusLoading {
					t.Fatal("stale observation delivered after the latest")
				}
			default:
			}
		} else {
			// Seed was the initial loading state; the concurrent Set must
			// still come through.
			select {
			case next := <-ch:
				if next.Status != StatusAuthenticated {
					t.Fatalf("follow-up observation = %v, want authenticated", next.Status)
				}
			case <-time.After(time.Second):
				t.Fatal("update lost during a concurrent subscription")
			}
		}

		cancel()
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	obs := NewObservable()
	ch, cancel := obs.Subscribe()
	<-ch

	cancel()
	obs.Set(State{Status: StatusUnauthenticated})

	select {
	case state, ok := <-ch:
		if ok {
			t.Fatalf("canceled subscriber received %+v", state)
		}
	case <-time.After(50 * time.Millisecond):
		// nothing delivered, as expected
	}
}
