package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"alert-backtest-lab/internal/storage"
	chstore "alert-backtest-lab/internal/storage/clickhouse"
	"alert-backtest-lab/internal/storage/memory"
	"alert-backtest-lab/internal/storage/migrations"
	pgstore "alert-backtest-lab/internal/storage/postgres"
	"alert-backtest-lab/internal/storage/snapshot"
)

// Source errors
var (
	ErrNoCandleSource = errors.New("either -snapshot or -clickhouse-dsn is required")
	ErrNoAlertSource  = errors.New("either -alerts-csv or -postgres-dsn is required")
)

// SourceOptions selects where candles, alerts and trade results live.
type SourceOptions struct {
	SnapshotPath  string // Arrow candle snapshot, takes precedence over ClickHouse
	ClickHouseDSN string
	AlertsCSV     string // takes precedence over PostgreSQL for alerts
	PostgresDSN   string
	Persist       bool // store trade results in PostgreSQL instead of memory
	Migrate       bool // apply schema migrations to every database opened
}

// Sources bundles the opened stores. Close releases every connection.
type Sources struct {
	Candles storage.CandleStore
	Alerts  storage.AlertStore
	Results storage.TradeResultStore

	closers []func()
}

// OpenSources connects the stores described by opts.
func OpenSources(ctx context.Context, opts SourceOptions, logger *zap.Logger) (*Sources, error) {
	s := &Sources{}

	if err := s.openCandles(ctx, opts, logger); err != nil {
		s.Close()
		return nil, err
	}

	var pool *pgstore.Pool
	if opts.PostgresDSN != "" && (opts.AlertsCSV == "" || opts.Persist) {
		p, err := pgstore.NewPool(ctx, opts.PostgresDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pool = p
		s.closers = append(s.closers, p.Close)

		if opts.Migrate || opts.Persist {
			if err := migrations.ApplyPostgres(ctx, pool); err != nil {
				s.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			logger.Debug("postgres schema applied")
		}
	}

	switch {
	case opts.AlertsCSV != "":
		store, n, err := loadAlertsCSV(ctx, opts.AlertsCSV)
		if err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("loaded alerts", zap.String("path", opts.AlertsCSV), zap.Int("alerts", n))
		s.Alerts = store
	case pool != nil:
		s.Alerts = pgstore.NewAlertStore(pool)
	default:
		s.Close()
		return nil, ErrNoAlertSource
	}

	if opts.Persist {
		if pool == nil {
			s.Close()
			return nil, errors.New("-persist requires -postgres-dsn")
		}
		s.Results = pgstore.NewTradeResultStore(pool)
	} else {
		s.Results = memory.NewTradeResultStore()
	}

	return s, nil
}

func (s *Sources) openCandles(ctx context.Context, opts SourceOptions, logger *zap.Logger) error {
	switch {
	case opts.SnapshotPath != "":
		store := memory.NewCandleStore()
		n, err := snapshot.NewCodec(snapshot.DefaultBatchSize).LoadInto(ctx, opts.SnapshotPath, store)
		if err != nil {
			return err
		}
		logger.Info("loaded candle snapshot", zap.String("path", opts.SnapshotPath), zap.Int("candles", n))
		s.Candles = store
	case opts.ClickHouseDSN != "":
		conn, err := openClickHouse(ctx, opts)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Candles = chstore.NewCandleStore(conn)
	default:
		return ErrNoCandleSource
	}
	return nil
}

func openClickHouse(ctx context.Context, opts SourceOptions) (*chstore.Conn, error) {
	if opts.Migrate {
		conn, err := migrations.ApplyClickHouse(ctx, opts.ClickHouseDSN)
		if err != nil {
			return nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		return conn, nil
	}
	conn, err := chstore.NewConn(ctx, opts.ClickHouseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return conn, nil
}

// Close releases connections in reverse order of opening.
func (s *Sources) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func loadAlertsCSV(ctx context.Context, path string) (*memory.AlertStore, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open alerts: %w", err)
	}
	defer f.Close()

	alerts, err := ReadAlertsCSV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	store := memory.NewAlertStore()
	if err := store.InsertBulk(ctx, alerts); err != nil {
		return nil, 0, fmt.Errorf("load alerts: %w", err)
	}
	return store, len(alerts), nil
}
