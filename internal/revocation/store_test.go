package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRecordLiveThenIsLive(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if err := store.RecordLive(ctx, "u-1", "tok-1", time.Hour); err != nil {
		t.Fatalf("record: %v", err)
	}

	live, err := store.IsLive(ctx, "u-1", "tok-1")
	if err != nil {
		t.Fatalf("islive: %v", err)
	}
	if !live {
		t.Fatal("expected token to be live after recording")
	}

	live, err = store.IsLive(ctx, "u-1", "tok-other")
	if err != nil {
		t.Fatalf("islive: %v", err)
	}
	if live {
		t.Fatal("unrecorded token must not be live")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if err := store.RecordLive(ctx, "u-1", "tok-1", time.Hour); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Revoke(ctx, "u-1", "tok-1"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := store.Revoke(ctx, "u-1", "tok-1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	// Revoking a token that was never recorded is also fine.
	if err := store.Revoke(ctx, "u-2", "tok-never"); err != nil {
		t.Fatalf("revoke absent: %v", err)
	}

	live, err := store.IsLive(ctx, "u-1", "tok-1")
	if err != nil {
		t.Fatalf("islive: %v", err)
	}
	if live {
		t.Fatal("revoked token must not be live")
	}
}

func TestLivenessLapsesWithTTL(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()

	if err := store.RecordLive(ctx, "u-1", "tok-1", time.Minute); err != nil {
		t.Fatalf("record: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	live, err := store.IsLive(ctx, "u-1", "tok-1")
	if err != nil {
		t.Fatalf("islive: %v", err)
	}
	if live {
		t.Fatal("token must lapse after set TTL elapses")
	}
}

func TestRecordLiveRefreshesTTL(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()

	if err := store.RecordLive(ctx, "u-1", "tok-1", time.Minute); err != nil {
		t.Fatalf("record: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if err := store.RecordLive(ctx, "u-1", "tok-2", time.Minute); err != nil {
		t.Fatalf("record: %v", err)
	}
	mr.FastForward(45 * time.Second)

	// The second record pushed the whole set's expiry out.
	live, err := store.IsLive(ctx, "u-1", "tok-1")
	if err != nil {
		t.Fatalf("islive: %v", err)
	}
	if !live {
		t.Fatal("set TTL should have been refreshed by the second record")
	}
}

func TestNoopStoreAlwaysLive(t *testing.T) {
	store := NewNoopStore()
	ctx := context.Background()

	if err := store.RecordLive(ctx, "u-1", "tok-1", time.Hour); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Revoke(ctx, "u-1", "tok-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	live, err := store.IsLive(ctx, "u-1", "tok-1")
	if err != nil {
		t.Fatalf("islive: %v", err)
	}
	if !live {
		t.Fatal("disabled store must always report live")
	}
}
