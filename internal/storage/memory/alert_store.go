package memory

import (
	"context"
	"sort"
	"sync"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Alert // keyed by alert_id
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[string]*domain.Alert),
	}
}

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.AlertID == "" || a.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AlertID]; exists {
		return storage.ErrDuplicateKey
	}

	alertCopy := *a
	s.data[a.AlertID] = &alertCopy
	return nil
}

// InsertBulk adds multiple alerts atomically. Fails entire batch on any duplicate.
func (s *AlertStore) InsertBulk(_ context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		if a == nil || a.AlertID == "" || a.Token == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[a.AlertID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[a.AlertID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[a.AlertID] = struct{}{}
	}

	for _, a := range alerts {
		alertCopy := *a
		s.data[a.AlertID] = &alertCopy
	}

	return nil
}

// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(_ context.Context, alertID string) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[alertID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	alertCopy := *a
	return &alertCopy, nil
}

// GetAll retrieves every alert ordered by (timestamp_ms, alert_id) ASC.
func (s *AlertStore) GetAll(_ context.Context) ([]*domain.Alert, error) {
	return s.filter(func(*domain.Alert) bool { return true }), nil
}

// GetByTimeRange retrieves alerts within [start, end] (inclusive).
func (s *AlertStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Alert, error) {
	return s.filter(func(a *domain.Alert) bool {
		return a.TimestampMs >= start && a.TimestampMs <= end
	}), nil
}

func (s *AlertStore) filter(keep func(a *domain.Alert) bool) []*domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.data {
		if keep(a) {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}

	SortAlerts(result)
	return result
}

// SortAlerts orders alerts by (timestamp_ms, alert_id) ASC.
func SortAlerts(alerts []*domain.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].TimestampMs != alerts[j].TimestampMs {
			return alerts[i].TimestampMs < alerts[j].TimestampMs
		}
		return alerts[i].AlertID < alerts[j].AlertID
	})
}

var _ storage.AlertStore = (*AlertStore)(nil)
