package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

const insertAlertQuery = `
	INSERT INTO alerts (alert_id, token, chain, caller, timestamp_ms)
	VALUES ($1, $2, $3, $4, $5)
`

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.AlertID == "" || a.Token == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertAlertQuery, a.AlertID, a.Token, a.Chain, a.Caller, a.TimestampMs)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// InsertBulk adds multiple alerts atomically. Fails entire batch on any duplicate.
func (s *AlertStore) InsertBulk(ctx context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range alerts {
		if a == nil || a.AlertID == "" || a.Token == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertAlertQuery, a.AlertID, a.Token, a.Chain, a.Caller, a.TimestampMs)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert alert in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(ctx context.Context, alertID string) (*domain.Alert, error) {
	query := `
		SELECT alert_id, token, chain, caller, timestamp_ms
		FROM alerts
		WHERE alert_id = $1
	`

	var a domain.Alert
	err := s.pool.QueryRow(ctx, query, alertID).Scan(&a.AlertID, &a.Token, &a.Chain, &a.Caller, &a.TimestampMs)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alert by id: %w", err)
	}
	return &a, nil
}

// GetAll retrieves every alert ordered by (timestamp_ms, alert_id) ASC.
func (s *AlertStore) GetAll(ctx context.Context) ([]*domain.Alert, error) {
	query := `
		SELECT alert_id, token, chain, caller, timestamp_ms
		FROM alerts
		ORDER BY timestamp_ms ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetByTimeRange retrieves alerts within [start, end] (inclusive).
func (s *AlertStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Alert, error) {
	query := `
		SELECT alert_id, token, chain, caller, timestamp_ms
		FROM alerts
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get alerts by time range: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// scanAlerts scans multiple rows into a slice of Alert.
func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.AlertID, &a.Token, &a.Chain, &a.Caller, &a.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
