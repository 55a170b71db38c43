package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by (token, interval_seconds, timestamp_ms)
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

// candleKey generates a unique key for a candle.
func candleKey(token string, intervalSeconds int, timestampMs int64) string {
	return fmt.Sprintf("%s|%d|%d", token, intervalSeconds, timestampMs)
}

// InsertBulk adds multiple candles. Fails entire batch on duplicate.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(candles))

	// First pass: check for duplicates (existing + intra-batch)
	for _, c := range candles {
		if c == nil || c.Token == "" || c.IntervalSeconds <= 0 {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.Token, c.IntervalSeconds, c.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, c := range candles {
		candleCopy := *c
		s.data[candleKey(c.Token, c.IntervalSeconds, c.TimestampMs)] = &candleCopy
	}

	return nil
}

// GetByToken retrieves all candles for a token at one interval, ordered by timestamp ASC.
func (s *CandleStore) GetByToken(_ context.Context, token string, intervalSeconds int) ([]*domain.Candle, error) {
	return s.filter(func(c *domain.Candle) bool {
		return c.Token == token && c.IntervalSeconds == intervalSeconds
	}), nil
}

// GetByTimeRange retrieves candles for a token within [start, end).
func (s *CandleStore) GetByTimeRange(_ context.Context, token string, intervalSeconds int, start, end int64) ([]*domain.Candle, error) {
	return s.filter(func(c *domain.Candle) bool {
		return c.Token == token && c.IntervalSeconds == intervalSeconds &&
			c.TimestampMs >= start && c.TimestampMs < end
	}), nil
}

// Tokens returns every distinct token, sorted ASC.
func (s *CandleStore) Tokens(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, c := range s.data {
		seen[c.Token] = struct{}{}
	}

	tokens := make([]string, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens, nil
}

// Len returns the number of stored candles.
func (s *CandleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *CandleStore) filter(keep func(c *domain.Candle) bool) []*domain.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if keep(c) {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

var _ storage.CandleStore = (*CandleStore)(nil)
