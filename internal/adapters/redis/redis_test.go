package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "staybook/internal/adapters/redis"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redisad.Cache, *redisad.Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return mr, redisad.New(c), redisad.NewLocker(c)
}

type item struct {
	ID       int64  `json:"id"`
	Location string `json:"location"`
}

func TestCache_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, cache, _ := newClient(t)

	var got item
	if ok, err := cache.Get(ctx, "accommodation:1", &got); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "accommodation:1", item{ID: 1, Location: "Odesa"}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ok, err := cache.Get(ctx, "accommodation:1", &got); !ok || err != nil || got.Location != "Odesa" {
		t.Fatalf("get: %+v ok=%v err=%v", got, ok, err)
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := cache.Get(ctx, "accommodation:1", &got); ok {
		t.Fatal("entry outlived its ttl")
	}

	_ = cache.Set(ctx, "accommodation:2", item{ID: 2}, 60)
	if err := cache.Del(ctx, "accommodation:2"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("accommodation:2") {
		t.Fatal("key not deleted")
	}
}

func TestCache_CorruptEntry(t *testing.T) {
	mr, cache, _ := newClient(t)
	_ = mr.Set("accommodation:3", "{not json")

	var got item
	ok, err := cache.Get(context.Background(), "accommodation:3", &got)
	if ok || err == nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	mr, _, locker := newClient(t)
	key := "staybook:sweep:2025-05-10"

	release, ok, err := locker.TryLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := locker.TryLock(ctx, key, time.Minute); ok {
		t.Fatal("lock acquired twice")
	}

	// A release after expiry must not drop someone else's lock.
	mr.FastForward(2 * time.Minute)
	release2, ok, err := locker.TryLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock after expiry: ok=%v err=%v", ok, err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("stale release removed the new holder's lock")
	}
	if err := release2(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("lock still held after release")
	}
}
