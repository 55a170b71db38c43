package portfolio

import (
	"context"
	"errors"
	"math"
	"testing"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/simulation"
	"alert-backtest-lab/internal/window"
)

const hourMs = int64(3_600_000)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func baseConfig() domain.PortfolioConfig {
	return domain.PortfolioConfig{
		InitialCapital:         10_000,
		MaxConcurrentPositions: 5,
		MaxAllocationPct:       0.04,
		MaxRiskPerTrade:        1,
		MinExecutableSize:      0,
		TPMult:                 2,
		SLMult:                 0.5,
		IntrabarOrder:          domain.IntrabarTPFirst,
		Costs:                  domain.CostConfig{TakerFeeBps: 30, SlippageBps: 10},
	}
}

func executed(id string, entryMs, exitMs int64, multiple float64) Candidate {
	return Candidate{
		AlertID:      id,
		Token:        "tok-" + id,
		AlertTimeMs:  entryMs,
		EntryTimeMs:  entryMs,
		Occurred:     true,
		EntryPrice:   1,
		ExitTimeMs:   exitMs,
		ExitMultiple: multiple,
		ExitReason:   domain.ExitReasonTakeProfit,
	}
}

func TestReplay_CapitalConservation(t *testing.T) {
	res, err := Replay([]Candidate{executed("a1", 0, hourMs, 2.0)}, baseConfig())
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	tr := res.Trades[0]
	if !tr.Executed {
		t.Fatalf("expected trade to execute, got skip %s", tr.SkipReason)
	}
	if !approxEqual(tr.Size, 400) {
		t.Errorf("expected size 400, got %f", tr.Size)
	}
	if !approxEqual(tr.Fees, 3.2) {
		t.Errorf("expected fees 3.2, got %f", tr.Fees)
	}
	if !approxEqual(tr.PnL, 396.8) {
		t.Errorf("expected pnl 396.8, got %f", tr.PnL)
	}
	if !approxEqual(tr.CapitalAfter, 9600) {
		t.Errorf("expected 9600 free after open, got %f", tr.CapitalAfter)
	}
	if !approxEqual(res.Summary.FinalCapital, 10_396.8) {
		t.Errorf("expected final capital 10396.8, got %f", res.Summary.FinalCapital)
	}
	if !approxEqual(res.Summary.TotalReturnPct, 3.968) {
		t.Errorf("expected return 3.968%%, got %f", res.Summary.TotalReturnPct)
	}
	if res.Summary.WinRate != 1 || res.Summary.TradesExecuted != 1 || res.Summary.TradesSkipped != 0 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
}

func TestReplay_CapacityReleasedByExitTime(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxConcurrentPositions = 1

	candidates := []Candidate{
		executed("a", 0, hourMs, 1.5),
		executed("b", hourMs/2, 2*hourMs, 1.5), // a still open
		executed("c", hourMs, 3*hourMs, 1.5),   // a exits exactly now
		executed("d", 2*hourMs, 4*hourMs, 1.5), // c still open
		executed("e", 5*hourMs, 6*hourMs, 1.5), // c released long ago
	}

	res, err := Replay(candidates, cfg)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	want := []string{"", domain.SkipReasonCapacity, "", domain.SkipReasonCapacity, ""}
	for i, tr := range res.Trades {
		if tr.SkipReason != want[i] {
			t.Errorf("trade %s: expected skip %q, got %q", tr.AlertID, want[i], tr.SkipReason)
		}
	}
	if res.Summary.TradesExecuted != 3 || res.Summary.TradesSkipped != 2 {
		t.Errorf("unexpected counts %+v", res.Summary)
	}
}

func TestReplay_Sizing(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domain.PortfolioConfig)
		wantSize float64
		wantSkip string
	}{
		{"allocation", func(c *domain.PortfolioConfig) {}, 400, ""},
		{"risk cap", func(c *domain.PortfolioConfig) { c.MaxRiskPerTrade = 0.01 }, 200, ""},
		{"undersized", func(c *domain.PortfolioConfig) { c.MinExecutableSize = 500 }, 0, domain.SkipReasonUndersized},
	}

	for _, tt := range tests {
		cfg := baseConfig()
		tt.mutate(&cfg)

		res, err := Replay([]Candidate{executed("a1", 0, hourMs, 1.2)}, cfg)
		if err != nil {
			t.Fatalf("%s: Replay failed: %v", tt.name, err)
		}
		tr := res.Trades[0]
		if tr.SkipReason != tt.wantSkip {
			t.Errorf("%s: expected skip %q, got %q", tt.name, tt.wantSkip, tr.SkipReason)
		}
		if !approxEqual(tr.Size, tt.wantSize) {
			t.Errorf("%s: expected size %f, got %f", tt.name, tt.wantSize, tr.Size)
		}
	}
}

func TestReplay_NoEntrySkip(t *testing.T) {
	missed := Candidate{AlertID: "m", EntryTimeMs: 0, MissedReason: domain.MissedNoCandles}

	res, err := Replay([]Candidate{missed}, baseConfig())
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if res.Trades[0].SkipReason != domain.SkipReasonNoEntry {
		t.Errorf("expected no_entry skip, got %q", res.Trades[0].SkipReason)
	}
	if res.Summary.FinalCapital != 10_000 {
		t.Errorf("capital must be untouched, got %f", res.Summary.FinalCapital)
	}
}

func TestReplay_StableOrder(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxConcurrentPositions = 1

	// x and y share an entry time; x comes first in the input and wins the slot.
	candidates := []Candidate{
		executed("z", 2*hourMs, 3*hourMs, 1.1),
		executed("x", hourMs, 4*hourMs, 1.1),
		executed("y", hourMs, 4*hourMs, 1.1),
	}

	res, err := Replay(candidates, cfg)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	order := []string{"x", "y", "z"}
	for i, tr := range res.Trades {
		if tr.AlertID != order[i] {
			t.Errorf("position %d: expected %s, got %s", i, order[i], tr.AlertID)
		}
	}
	if !res.Trades[0].Executed || res.Trades[1].Executed || res.Trades[2].Executed {
		t.Errorf("expected only x to execute")
	}
	if candidates[0].AlertID != "z" {
		t.Errorf("input slice must not be reordered")
	}
}

func TestReplay_Drawdown(t *testing.T) {
	cfg := baseConfig()
	cfg.Costs = domain.CostConfig{}

	res, err := Replay([]Candidate{executed("loss", 0, hourMs, 0.5)}, cfg)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	// 400 at 0.5x loses 200 of 10000
	if !approxEqual(res.Summary.MaxDrawdownPct, 2) {
		t.Errorf("expected 2%% drawdown, got %f", res.Summary.MaxDrawdownPct)
	}
	if res.Summary.WinRate != 0 {
		t.Errorf("expected zero win rate, got %f", res.Summary.WinRate)
	}
}

func TestReplay_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.PortfolioConfig)
		wantErr error
	}{
		{"capital", func(c *domain.PortfolioConfig) { c.InitialCapital = 0 }, ErrInvalidCapital},
		{"positions", func(c *domain.PortfolioConfig) { c.MaxConcurrentPositions = 0 }, ErrInvalidMaxPositions},
		{"allocation", func(c *domain.PortfolioConfig) { c.MaxAllocationPct = 1.5 }, ErrInvalidAllocation},
		{"risk", func(c *domain.PortfolioConfig) { c.MaxRiskPerTrade = 0 }, ErrInvalidRisk},
		{"min size", func(c *domain.PortfolioConfig) { c.MinExecutableSize = -1 }, ErrInvalidMinSize},
		{"costs", func(c *domain.PortfolioConfig) { c.Costs.SlippageBps = -1 }, ErrInvalidCosts},
		{"hold", func(c *domain.PortfolioConfig) { c.MaxHoldMs = -1 }, ErrInvalidMaxHold},
	}

	for _, tt := range tests {
		cfg := baseConfig()
		tt.mutate(&cfg)
		if _, err := Replay(nil, cfg); !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
		}
	}

	bad := executed("bad", hourMs, 0, 2.0)
	if _, err := Replay([]Candidate{bad}, baseConfig()); !errors.Is(err, ErrInvalidCandidate) {
		t.Errorf("expected ErrInvalidCandidate, got %v", err)
	}
}

func TestSimulator_Run(t *testing.T) {
	sim, err := New(Options{Config: baseConfig(), Workers: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	candle := &domain.Candle{
		Token: "T", TimestampMs: 0, IntervalSeconds: 60,
		Open: 1.0, High: 2.0, Low: 0.9, Close: 1.9,
	}
	jobs := []simulation.Job{
		{
			Alert:  &domain.Alert{AlertID: "a1", Token: "T", TimestampMs: 0},
			Window: window.Window{EntryTimeMs: 0, EndTimeMs: hourMs, Candles: []*domain.Candle{candle}},
		},
		{
			Alert:  &domain.Alert{AlertID: "a2", Token: "U", TimestampMs: 10},
			Window: window.Window{EntryTimeMs: 60_000, EndTimeMs: hourMs},
		},
	}

	res, err := sim.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Summary.RunID == "" {
		t.Error("expected run id")
	}
	if !approxEqual(res.Summary.FinalCapital, 10_396.8) {
		t.Errorf("expected final capital 10396.8, got %f", res.Summary.FinalCapital)
	}
	if res.Trades[0].ExitReason != domain.ExitReasonTakeProfit {
		t.Errorf("expected take_profit, got %s", res.Trades[0].ExitReason)
	}
	if res.Trades[1].SkipReason != domain.SkipReasonNoEntry {
		t.Errorf("expected no_entry for empty window, got %q", res.Trades[1].SkipReason)
	}
}

func TestNew_InvalidExit(t *testing.T) {
	cfg := baseConfig()
	cfg.IntrabarOrder = "sideways"
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Error("expected error for unknown intrabar order")
	}
}
