package cache

import (
	"context"
	"testing"

	"alert-backtest-lab/internal/domain"
)

func TestMemoryCache_GetPut(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Put(ctx, "k", domain.TrialMetrics{Trades: 3, TotalReturn: 0.5}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	m, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if m.Trades != 3 || m.TotalReturn != 0.5 {
		t.Errorf("unexpected metrics %+v", m)
	}

	// Mutating the returned copy must not affect the cache.
	m.Trades = 99
	again, _, _ := c.Get(ctx, "k")
	if again.Trades != 3 {
		t.Errorf("cache entry was mutated through a returned pointer")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}
