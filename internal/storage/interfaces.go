package storage

import (
	"context"

	"alert-backtest-lab/internal/domain"
)

// CandleStore provides access to candles storage.
type CandleStore interface {
	// InsertBulk adds multiple candles. Fails entire batch on duplicate (token, interval_seconds, timestamp_ms).
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetByToken retrieves all candles for a token at one interval, ordered by timestamp ASC.
	GetByToken(ctx context.Context, token string, intervalSeconds int) ([]*domain.Candle, error)

	// GetByTimeRange retrieves candles for a token within [start, end) (end exclusive).
	GetByTimeRange(ctx context.Context, token string, intervalSeconds int, start, end int64) ([]*domain.Candle, error)

	// Tokens returns every distinct token, sorted ASC.
	Tokens(ctx context.Context) ([]string, error)
}

// AlertStore provides access to alerts storage.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
	Insert(ctx context.Context, a *domain.Alert) error

	// InsertBulk adds multiple alerts atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, alerts []*domain.Alert) error

	// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, alertID string) (*domain.Alert, error)

	// GetAll retrieves every alert ordered by (timestamp_ms, alert_id) ASC.
	GetAll(ctx context.Context) ([]*domain.Alert, error)

	// GetByTimeRange retrieves alerts within [start, end] (inclusive), same order as GetAll.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Alert, error)
}

// TradeResultStore provides access to trade_results storage.
type TradeResultStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, r *domain.TradeResult) error

	// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, results []*domain.TradeResult) error

	// GetByID retrieves a result by trade ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeResult, error)

	// GetByConfigID retrieves all results of one configuration ordered by (alert_time_ms, alert_id).
	GetByConfigID(ctx context.Context, configID string) ([]*domain.TradeResult, error)
}
