// Package cache stores evaluated grid trials so repeated optimizer runs over
// the same dataset skip work they have already done.
package cache

import (
	"context"
	"sync"

	"alert-backtest-lab/internal/domain"
)

// TrialCache looks up trial metrics by trial key.
// A miss is (nil, false, nil); errors are reserved for backend failures.
type TrialCache interface {
	Get(ctx context.Context, key string) (*domain.TrialMetrics, bool, error)
	Put(ctx context.Context, key string, m domain.TrialMetrics) error
}

// MemoryCache is an in-process TrialCache.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]domain.TrialMetrics
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]domain.TrialMetrics)}
}

// Get returns a copy of the cached metrics.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.TrialMetrics, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	return &m, true, nil
}

// Put stores metrics under key, replacing any previous value.
func (c *MemoryCache) Put(_ context.Context, key string, m domain.TrialMetrics) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = m
	return nil
}

// Len returns the number of cached trials.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
