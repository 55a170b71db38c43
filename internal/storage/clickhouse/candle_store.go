package clickhouse

import (
	"context"
	"fmt"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

const candleColumns = `token, chain, timestamp_ms, open, high, low, close, volume, interval_seconds`

// InsertBulk adds multiple candles. Fails entire batch on duplicate (token, interval_seconds, timestamp_ms).
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		token       string
		interval    int
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(candles))
	for _, c := range candles {
		if c == nil || c.Token == "" || c.IntervalSeconds <= 0 {
			return storage.ErrInvalidInput
		}
		k := key{c.Token, c.IntervalSeconds, c.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, check existing rows first
	for _, c := range candles {
		exists, err := s.exists(ctx, c.Token, c.IntervalSeconds, c.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO candles (`+candleColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Token, c.Chain, uint64(c.TimestampMs),
			c.Open, c.High, c.Low, c.Close, c.Volume,
			uint32(c.IntervalSeconds),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByToken retrieves all candles for a token at one interval, ordered by timestamp ASC.
func (s *CandleStore) GetByToken(ctx context.Context, token string, intervalSeconds int) ([]*domain.Candle, error) {
	query := `
		SELECT ` + candleColumns + `
		FROM candles
		WHERE token = ? AND interval_seconds = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, token, uint32(intervalSeconds))
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves candles for a token within [start, end).
func (s *CandleStore) GetByTimeRange(ctx context.Context, token string, intervalSeconds int, start, end int64) ([]*domain.Candle, error) {
	query := `
		SELECT ` + candleColumns + `
		FROM candles
		WHERE token = ? AND interval_seconds = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, token, uint32(intervalSeconds), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Tokens returns every distinct token, sorted ASC.
func (s *CandleStore) Tokens(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT token FROM candles ORDER BY token ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, token string, intervalSeconds int, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE token = ? AND interval_seconds = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, token, uint32(intervalSeconds), uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		var timestampMs uint64
		var interval uint32

		err := rows.Scan(
			&c.Token, &c.Chain, &timestampMs,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
			&interval,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.TimestampMs = int64(timestampMs)
		c.IntervalSeconds = int(interval)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
