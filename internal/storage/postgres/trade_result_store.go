package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// TradeResultStore implements storage.TradeResultStore using PostgreSQL.
type TradeResultStore struct {
	pool *Pool
}

// NewTradeResultStore creates a new TradeResultStore.
func NewTradeResultStore(pool *Pool) *TradeResultStore {
	return &TradeResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeResultStore = (*TradeResultStore)(nil)

const tradeResultColumns = `
	trade_id, alert_id, token, caller, config_id, alert_price, alert_time_ms,
	entry_occurred, entry_price, entry_time_ms, time_to_entry_ms, missed_reason,
	exit_price, exit_time_ms, exit_reason, peak_multiple, ath_multiple,
	hit_2x, hit_3x, hit_4x, hit_5x, hit_10x,
	exit_multiple_from_entry, exit_multiple_from_alert, giveback_from_peak_pct
`

const insertTradeResultQuery = `
	INSERT INTO trade_results (` + tradeResultColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17,
		$18, $19, $20, $21, $22,
		$23, $24, $25
	)
`

// Insert adds a new result. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeResultStore) Insert(ctx context.Context, r *domain.TradeResult) error {
	if r == nil || r.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeResultQuery, tradeResultArgs(r)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade result: %w", err)
	}
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *TradeResultStore) InsertBulk(ctx context.Context, results []*domain.TradeResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range results {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTradeResultQuery, tradeResultArgs(r)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade result in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a result by trade ID. Returns ErrNotFound if not exists.
func (s *TradeResultStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeResult, error) {
	query := `SELECT ` + tradeResultColumns + ` FROM trade_results WHERE trade_id = $1`

	r, err := scanTradeResult(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade result by id: %w", err)
	}
	return r, nil
}

// GetByConfigID retrieves all results of one configuration ordered by (alert_time_ms, alert_id).
func (s *TradeResultStore) GetByConfigID(ctx context.Context, configID string) ([]*domain.TradeResult, error) {
	query := `
		SELECT ` + tradeResultColumns + `
		FROM trade_results
		WHERE config_id = $1
		ORDER BY alert_time_ms ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query, configID)
	if err != nil {
		return nil, fmt.Errorf("get trade results by config id: %w", err)
	}
	defer rows.Close()

	var results []*domain.TradeResult
	for rows.Next() {
		r, err := scanTradeResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade result row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade result rows: %w", err)
	}

	return results, nil
}

// tradeResultArgs flattens a result into insert arguments; exit columns are NULL for missed entries.
func tradeResultArgs(r *domain.TradeResult) []any {
	var (
		exitPrice, peak, ath *float64
		exitTime             *int64
		exitReason           *string
		m                    domain.Milestones
	)
	if r.Exit != nil {
		exitPrice = &r.Exit.Price
		exitTime = &r.Exit.TimestampMs
		exitReason = &r.Exit.Reason
		peak = &r.Exit.PeakMultiple
		ath = &r.Exit.ATHMultiple
		m = r.Exit.Milestones
	}

	return []any{
		r.TradeID, r.AlertID, r.Token, r.Caller, r.ConfigID, r.AlertPrice, r.AlertTimeMs,
		r.Entry.Occurred, r.Entry.Price, r.Entry.TimestampMs, r.Entry.TimeToEntryMs, r.Entry.MissedReason,
		exitPrice, exitTime, exitReason, peak, ath,
		m.Hit2x, m.Hit3x, m.Hit4x, m.Hit5x, m.Hit10x,
		r.ExitMultipleFromEntry, r.ExitMultipleFromAlert, r.GivebackFromPeakPct,
	}
}

// scanTradeResult scans a single row into a TradeResult.
func scanTradeResult(row pgx.Row) (*domain.TradeResult, error) {
	var (
		r                    domain.TradeResult
		exitPrice, peak, ath *float64
		exitTime             *int64
		exitReason           *string
		m                    domain.Milestones
	)

	err := row.Scan(
		&r.TradeID, &r.AlertID, &r.Token, &r.Caller, &r.ConfigID, &r.AlertPrice, &r.AlertTimeMs,
		&r.Entry.Occurred, &r.Entry.Price, &r.Entry.TimestampMs, &r.Entry.TimeToEntryMs, &r.Entry.MissedReason,
		&exitPrice, &exitTime, &exitReason, &peak, &ath,
		&m.Hit2x, &m.Hit3x, &m.Hit4x, &m.Hit5x, &m.Hit10x,
		&r.ExitMultipleFromEntry, &r.ExitMultipleFromAlert, &r.GivebackFromPeakPct,
	)
	if err != nil {
		return nil, err
	}

	if exitPrice != nil && exitTime != nil && exitReason != nil {
		r.Exit = &domain.ExitOutcome{
			Price:       *exitPrice,
			TimestampMs: *exitTime,
			Reason:      *exitReason,
			Milestones:  m,
		}
		if peak != nil {
			r.Exit.PeakMultiple = *peak
		}
		if ath != nil {
			r.Exit.ATHMultiple = *ath
		}
	}

	return &r, nil
}
