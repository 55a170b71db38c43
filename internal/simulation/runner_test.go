package simulation

import (
	"context"
	"errors"
	"testing"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage/memory"
	"alert-backtest-lab/internal/strategy"
)

// seedStores builds three tokens:
// A has a full window with a spike to 2.5x on the third candle,
// B has a single in-window candle,
// C opens at zero.
func seedStores(t *testing.T) (*memory.AlertStore, *memory.CandleStore) {
	t.Helper()
	ctx := context.Background()

	alerts := memory.NewAlertStore()
	candles := memory.NewCandleStore()

	var series []*domain.Candle
	for i := 0; i <= 10; i++ {
		high := 1.1
		if i == 3 {
			high = 2.5
		}
		series = append(series, bar("A", i, 1.0, high, 0.95, 1.0))

		open := 1.0
		if i == 1 {
			open = 0
		}
		series = append(series, bar("C", i, open, 1.1, 0, 1.0))
	}
	series = append(series, bar("B", 1, 1.0, 1.1, 0.95, 1.0))

	if err := candles.InsertBulk(ctx, series); err != nil {
		t.Fatalf("InsertBulk candles failed: %v", err)
	}

	err := alerts.InsertBulk(ctx, []*domain.Alert{
		{AlertID: "c1", Token: "C", Caller: "carol", TimestampMs: t0 + 32_000},
		{AlertID: "a1", Token: "A", Caller: "alice", TimestampMs: t0 + 30_000},
		{AlertID: "b1", Token: "B", Caller: "bob", TimestampMs: t0 + 31_000},
	})
	if err != nil {
		t.Fatalf("InsertBulk alerts failed: %v", err)
	}
	return alerts, candles
}

func newTestRunner(t *testing.T, workers int, trades *memory.TradeResultStore) *Runner {
	t.Helper()
	alerts, candles := seedStores(t)
	opts := RunnerOptions{
		AlertStore:  alerts,
		CandleStore: candles,
		Workers:     workers,
	}
	if trades != nil {
		opts.TradeResultStore = trades
	}
	r, err := NewRunner(opts)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

func tpslConfig() domain.ExitConfig {
	tp, sl := 2.0, 0.5
	return domain.ExitConfig{
		ExitType:      domain.ExitTypeTakeProfitStop,
		TPMult:        &tp,
		SLMult:        &sl,
		IntrabarOrder: domain.IntrabarSLFirst,
	}
}

func TestNewRunner_RequiresStores(t *testing.T) {
	if _, err := NewRunner(RunnerOptions{CandleStore: memory.NewCandleStore()}); !errors.Is(err, ErrMissingAlertStore) {
		t.Errorf("expected ErrMissingAlertStore, got %v", err)
	}
	if _, err := NewRunner(RunnerOptions{AlertStore: memory.NewAlertStore()}); !errors.Is(err, ErrMissingCandleStore) {
		t.Errorf("expected ErrMissingCandleStore, got %v", err)
	}
}

func TestRunner_Prepare(t *testing.T) {
	r := newTestRunner(t, 2, nil)

	jobs, err := r.Prepare(context.Background(), 60, 0.1)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}

	wantIDs := []string{"a1", "b1", "c1"}
	for i, j := range jobs {
		if j.Alert.AlertID != wantIDs[i] {
			t.Errorf("job %d: expected %s, got %s", i, wantIDs[i], j.Alert.AlertID)
		}
		if j.Window.EntryTimeMs != t0+minuteMs {
			t.Errorf("job %d: expected entry at next minute, got %d", i, j.Window.EntryTimeMs)
		}
	}
	if n := len(jobs[0].Window.Candles); n != 6 {
		t.Errorf("expected 6 candles in A window, got %d", n)
	}
	if n := len(jobs[1].Window.Candles); n != 1 {
		t.Errorf("expected 1 candle in B window, got %d", n)
	}
}

func TestRunner_RunPaths(t *testing.T) {
	r := newTestRunner(t, 2, nil)
	ctx := context.Background()

	jobs, err := r.Prepare(ctx, 60, 0.1)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	rows, err := r.RunPaths(ctx, jobs)
	if err != nil {
		t.Fatalf("RunPaths failed: %v", err)
	}

	want := []domain.PathStatus{domain.PathStatusOK, domain.PathStatusMissing, domain.PathStatusBadEntry}
	for i, row := range rows {
		if row.Status != want[i] {
			t.Errorf("row %d: expected %s, got %s", i, want[i], row.Status)
		}
	}
	if !approxEqual(rows[0].ATHMultiple, 2.5) {
		t.Errorf("expected ATH 2.5, got %f", rows[0].ATHMultiple)
	}
}

func TestRunner_RunPaths_IndependentOfWorkers(t *testing.T) {
	ctx := context.Background()

	var baseline []*domain.PathMetrics
	for _, workers := range []int{1, 8} {
		r := newTestRunner(t, workers, nil)
		jobs, err := r.Prepare(ctx, 60, 0.1)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		rows, err := r.RunPaths(ctx, jobs)
		if err != nil {
			t.Fatalf("RunPaths failed: %v", err)
		}
		if baseline == nil {
			baseline = rows
			continue
		}
		for i := range rows {
			if rows[i].AlertID != baseline[i].AlertID || rows[i].ATHMultiple != baseline[i].ATHMultiple {
				t.Errorf("row %d differs between worker counts", i)
			}
		}
	}
}

func TestRunner_RunTPSL(t *testing.T) {
	r := newTestRunner(t, 2, nil)
	ctx := context.Background()

	jobs, err := r.Prepare(ctx, 60, 0.1)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	rows, err := r.RunTPSL(ctx, jobs, tpslConfig())
	if err != nil {
		t.Fatalf("RunTPSL failed: %v", err)
	}

	if rows[0].Status != domain.PathStatusOK || rows[0].Reason != domain.TPSLReasonTP {
		t.Errorf("expected ok/tp for a1, got %+v", rows[0])
	}
	if !approxEqual(rows[0].Return, 1.0) {
		t.Errorf("expected return 1.0, got %f", rows[0].Return)
	}
	if rows[1].Status != domain.PathStatusMissing || rows[1].Reason != "" {
		t.Errorf("expected bare missing row for b1, got %+v", rows[1])
	}
	if rows[2].Status != domain.PathStatusBadEntry {
		t.Errorf("expected bad_entry for c1, got %+v", rows[2])
	}
}

func TestRunner_RunTPSL_RejectsOtherExits(t *testing.T) {
	r := newTestRunner(t, 1, nil)
	cfg := tpslConfig()
	cfg.ExitType = domain.ExitTypeStaticPhased

	if _, err := r.RunTPSL(context.Background(), nil, cfg); !errors.Is(err, ErrNotTPSLExit) {
		t.Errorf("expected ErrNotTPSLExit, got %v", err)
	}
}

func TestRunner_RunTrades_Persists(t *testing.T) {
	store := memory.NewTradeResultStore()
	r := newTestRunner(t, 4, store)
	ctx := context.Background()

	jobs, err := r.Prepare(ctx, 60, 0.1)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	cfg := domain.SimulationConfig{
		IntervalSeconds: 60,
		HorizonHours:    0.1,
		Entry:           domain.EntryConfig{EntryType: domain.EntryTypeImmediate},
		Exit:            tpslConfig(),
		StopReference:   domain.StopReferenceAlert,
	}
	results, err := r.RunTrades(ctx, jobs, cfg)
	if err != nil {
		t.Fatalf("RunTrades failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	a := results[0]
	if a.Exit == nil || a.Exit.Reason != domain.ExitReasonTakeProfit {
		t.Fatalf("expected take_profit for a1, got %+v", a.Exit)
	}
	if a.AlertTimeMs != t0+30_000 {
		t.Errorf("expected raw alert time, got %d", a.AlertTimeMs)
	}
	if a.Entry.TimestampMs != t0+minuteMs {
		t.Errorf("expected entry at aligned time, got %d", a.Entry.TimestampMs)
	}

	if b := results[1]; b.Exit == nil || b.Exit.Reason != domain.ExitReasonEndOfData {
		t.Errorf("expected end_of_data for b1, got %+v", b.Exit)
	}
	if c := results[2]; c.Entry.Occurred || c.Entry.MissedReason != domain.MissedBadEntryPrice {
		t.Errorf("expected bad_entry_price for c1, got %+v", c.Entry)
	}

	entry, _ := strategy.EntryFromConfig(cfg.Entry)
	exit, _ := strategy.ExitFromConfig(cfg.Exit)
	stored, err := store.GetByConfigID(ctx, strategy.ConfigID(entry, exit, cfg.StopReference))
	if err != nil {
		t.Fatalf("GetByConfigID failed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("expected 3 persisted results, got %d", len(stored))
	}
}

func TestRunner_RunTrades_InvalidConfig(t *testing.T) {
	r := newTestRunner(t, 1, nil)

	cfg := domain.SimulationConfig{
		Entry:         domain.EntryConfig{EntryType: domain.EntryTypeImmediate},
		Exit:          tpslConfig(),
		StopReference: "",
	}
	if _, err := r.RunTrades(context.Background(), nil, cfg); !errors.Is(err, ErrInvalidStopReference) {
		t.Errorf("expected ErrInvalidStopReference, got %v", err)
	}

	cfg.StopReference = domain.StopReferenceAlert
	cfg.Entry.EntryType = "BOGUS"
	if _, err := r.RunTrades(context.Background(), nil, cfg); !errors.Is(err, strategy.ErrUnknownEntryType) {
		t.Errorf("expected ErrUnknownEntryType, got %v", err)
	}
}
