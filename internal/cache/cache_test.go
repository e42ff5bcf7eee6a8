package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestNoopAdvisoryCacheAlwaysMisses(t *testing.T) {
	var c AdvisoryCache = NoopAdvisoryCache{}
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := c.Get(ctx, "k")
	if err != nil || ok || val != "" {
		t.Fatalf("expected miss, got %q ok=%t err=%v", val, ok, err)
	}
}

func TestRedisAdvisoryCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("PRINTPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set PRINTPOS_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisAdvisoryCache(addr, os.Getenv("PRINTPOS_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	key := fmt.Sprintf("printpos:test:%d", time.Now().UnixNano())
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss before set, ok=%t err=%v", ok, err)
	}
	if err := c.Set(ctx, key, "Restock A4 paper.", 5*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%t err=%v", ok, err)
	}
	if val != "Restock A4 paper." {
		t.Fatalf("unexpected cached value %q", val)
	}
}
