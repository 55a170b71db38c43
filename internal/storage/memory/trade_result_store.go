package memory

import (
	"context"
	"sort"
	"sync"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// TradeResultStore is an in-memory implementation of storage.TradeResultStore.
type TradeResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeResult // keyed by trade_id
}

// NewTradeResultStore creates a new in-memory trade result store.
func NewTradeResultStore() *TradeResultStore {
	return &TradeResultStore{
		data: make(map[string]*domain.TradeResult),
	}
}

// Insert adds a new result. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeResultStore) Insert(_ context.Context, r *domain.TradeResult) error {
	if r == nil || r.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.TradeID] = copyResult(r)
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *TradeResultStore) InsertBulk(_ context.Context, results []*domain.TradeResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.TradeID] = struct{}{}
	}

	for _, r := range results {
		s.data[r.TradeID] = copyResult(r)
	}

	return nil
}

// GetByID retrieves a result by trade ID. Returns ErrNotFound if not exists.
func (s *TradeResultStore) GetByID(_ context.Context, tradeID string) (*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyResult(r), nil
}

// GetByConfigID retrieves all results of one configuration ordered by (alert_time_ms, alert_id).
func (s *TradeResultStore) GetByConfigID(_ context.Context, configID string) ([]*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeResult
	for _, r := range s.data {
		if r.ConfigID == configID {
			result = append(result, copyResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AlertTimeMs != result[j].AlertTimeMs {
			return result[i].AlertTimeMs < result[j].AlertTimeMs
		}
		return result[i].AlertID < result[j].AlertID
	})

	return result, nil
}

// copyResult deep-copies the pointer fields. Remaining candles are not retained.
func copyResult(r *domain.TradeResult) *domain.TradeResult {
	c := *r
	c.Entry.Remaining = nil
	if r.Exit != nil {
		exitCopy := *r.Exit
		c.Exit = &exitCopy
	}
	c.ExitMultipleFromEntry = copyFloat(r.ExitMultipleFromEntry)
	c.ExitMultipleFromAlert = copyFloat(r.ExitMultipleFromAlert)
	c.GivebackFromPeakPct = copyFloat(r.GivebackFromPeakPct)
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ storage.TradeResultStore = (*TradeResultStore)(nil)
