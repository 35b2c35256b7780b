package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheFromClient(client), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "recommendations:u1:none"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set(ctx, "recommendations:u1:none", []byte(`{"tracks":[]}`), time.Minute)

	got, ok := c.Get(ctx, "recommendations:u1:none")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(got) != `{"tracks":[]}` {
		t.Errorf("Get = %q", got)
	}
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "recommendations:u1:none", []byte("v"), 300*time.Second)

	mr.FastForward(299 * time.Second)
	if _, ok := c.Get(ctx, "recommendations:u1:none"); !ok {
		t.Fatal("entry should survive until the TTL")
	}

	mr.FastForward(2 * time.Second)
	if _, ok := c.Get(ctx, "recommendations:u1:none"); ok {
		t.Fatal("entry should expire after the TTL")
	}
}

func TestRedisCache_DeleteByPrefix(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, RecommendationKey("u1", testContextWork()), []byte("a"), time.Minute)
	c.Set(ctx, RecommendationKey("u1", testContextZero()), []byte("b"), time.Minute)
	c.Set(ctx, RecommendationKey("u2", testContextZero()), []byte("c"), time.Minute)

	if n := c.DeleteByPrefix(ctx, UserPrefix("u1")); n != 2 {
		t.Errorf("DeleteByPrefix removed %d keys, want 2", n)
	}

	if _, ok := c.Get(ctx, RecommendationKey("u1", testContextWork())); ok {
		t.Error("u1 entry should be gone")
	}
	if _, ok := c.Get(ctx, RecommendationKey("u2", testContextZero())); !ok {
		t.Error("u2 entry should survive")
	}

	if n := c.DeleteByPrefix(ctx, UserPrefix("u1")); n != 0 {
		t.Errorf("second DeleteByPrefix removed %d keys, want 0", n)
	}
}

func TestRedisCache_DeleteByPrefix_ManyKeys(t *testing.T) {
	// More keys than one SCAN/DEL batch of 100.
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		c.Set(ctx, RecommendationKey("bulk", testContextZero())+string(rune('a'+i%26))+string(rune('a'+i/26)), []byte("v"), time.Minute)
	}

	if n := c.DeleteByPrefix(ctx, UserPrefix("bulk")); n != 250 {
		t.Errorf("DeleteByPrefix removed %d keys, want 250", n)
	}
}

func TestRedisCache_BackendFailureIsAMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "recommendations:u1:none", []byte("v"), time.Minute)
	mr.Close()

	if _, ok := c.Get(ctx, "recommendations:u1:none"); ok {
		t.Error("a dead backend should read as a miss")
	}
	// Set and DeleteByPrefix must not panic either.
	c.Set(ctx, "recommendations:u1:none", []byte("v"), time.Minute)
	if n := c.DeleteByPrefix(ctx, UserPrefix("u1")); n != 0 {
		t.Errorf("DeleteByPrefix on dead backend = %d, want 0", n)
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping should fail on a dead backend")
	}
}

func TestRedisCache_Ping(t *testing.T) {
	c, _ := newTestCache(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
