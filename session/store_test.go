package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mwestre/clubgate/role"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "cgtest"), mr
}

func TestStoreSaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := testSession("alice@club.test", role.Editor)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Email != sess.Email || got.Role != role.Editor || got.ID != sess.ID {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Get(context.Background(), "no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := testSession("alice@club.test", role.Viewer)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("repeat Delete failed: %v", err)
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := testSession("alice@club.test", role.Viewer)
	if err := store.Save(ctx, sess, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after TTL, got %v", err)
	}
}

func TestStoreAbsoluteExpiry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// The record's own expiry is in the past even though the Redis TTL has
	// not elapsed; Get must treat it as gone.
	sess := testSession("alice@club.test", role.Viewer)
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for expired record, got %v", err)
	}
}

func TestStoreSaveOverwritesRole(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := testSession("alice@club.test", role.Viewer)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sess.Role = role.Admin
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Role != role.Admin {
		t.Fatalf("role = %s, want admin after overwrite", got.Role)
	}
}

func TestDecodeDowngradesUnknownRole(t *testing.T) {
	sess := testSession("alice@club.test", role.Viewer)
	sess.Role = role.Role("superuser")

	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Role != role.None {
		t.Fatalf("unknown role decoded as %s, want none", got.Role)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected ErrSessionCorrupt, got %v", err)
	}
	if _, err := Decode([]byte(`{"v":99,"id":"x"}`)); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected ErrSessionCorrupt for unknown schema, got %v", err)
	}
}
