package window

import (
	"errors"
	"testing"

	"alert-backtest-lab/internal/domain"
)

// T0 is 2024-01-01T00:00:00Z, aligned to every supported interval.
const T0 = int64(1704067200000)

func candle(token string, ts int64, o, h, l, c float64) *domain.Candle {
	return &domain.Candle{
		Token:           token,
		TimestampMs:     ts,
		Open:            o,
		High:            h,
		Low:             l,
		Close:           c,
		Volume:          1,
		IntervalSeconds: 60,
	}
}

// flatSeries returns n one-minute candles at price p starting at start.
func flatSeries(token string, start int64, n int, p float64) []*domain.Candle {
	result := make([]*domain.Candle, n)
	for i := range result {
		result[i] = candle(token, start+int64(i)*60_000, p, p, p, p)
	}
	return result
}

func TestAlignEntry(t *testing.T) {
	tests := []struct {
		name    string
		alertMs int64
		want    int64
	}{
		{"mid interval rounds up", T0 + 30_000, T0 + 60_000},
		{"exact boundary unchanged", T0 + 60_000, T0 + 60_000},
		{"one millisecond before boundary", T0 + 60_000 - 1, T0 + 60_000},
		{"one millisecond after boundary", T0 + 60_000 + 1, T0 + 120_000},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlignEntry(tt.alertMs, 60); got != tt.want {
				t.Errorf("AlignEntry(%d) = %d, want %d", tt.alertMs, got, tt.want)
			}
		})
	}
}

func TestNewResolver_InvalidConfig(t *testing.T) {
	if _, err := NewResolver(0, 1); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := NewResolver(60, 0); !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("expected ErrInvalidHorizon, got %v", err)
	}
	if _, err := NewResolver(60, -2); !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("expected ErrInvalidHorizon, got %v", err)
	}
}

func TestResolve_EndExclusive(t *testing.T) {
	r, err := NewResolver(60, 1)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	// 61 candles from T0: the last one sits exactly on the horizon boundary.
	series := flatSeries("A", T0, 61, 1.0)
	w := r.Resolve(series, T0)

	if w.EntryTimeMs != T0 {
		t.Errorf("expected entry %d, got %d", T0, w.EntryTimeMs)
	}
	if w.EndTimeMs != T0+3_600_000 {
		t.Errorf("expected end %d, got %d", T0+3_600_000, w.EndTimeMs)
	}
	if len(w.Candles) != 60 {
		t.Fatalf("expected 60 candles, got %d", len(w.Candles))
	}
	last := w.Candles[len(w.Candles)-1]
	if last.TimestampMs >= w.EndTimeMs {
		t.Errorf("candle at %d must be excluded (end %d)", last.TimestampMs, w.EndTimeMs)
	}
}

func TestResolve_ExcludesCandlesBeforeEntry(t *testing.T) {
	r, _ := NewResolver(60, 1)

	series := flatSeries("A", T0, 10, 1.0)
	w := r.Resolve(series, T0+30_000)

	if w.EntryTimeMs != T0+60_000 {
		t.Fatalf("expected entry %d, got %d", T0+60_000, w.EntryTimeMs)
	}
	if w.Candles[0].TimestampMs != T0+60_000 {
		t.Errorf("first window candle at %d, want %d", w.Candles[0].TimestampMs, T0+60_000)
	}
	if len(w.Candles) != 9 {
		t.Errorf("expected 9 candles, got %d", len(w.Candles))
	}
}

func TestResolve_CapacityCapped(t *testing.T) {
	r, _ := NewResolver(60, 0.05) // 3 minutes

	series := flatSeries("A", T0, 10, 1.0)
	w := r.Resolve(series, T0)
	if len(w.Candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(w.Candles))
	}
	if cap(w.Candles) != len(w.Candles) {
		t.Errorf("window capacity %d exceeds length %d", cap(w.Candles), len(w.Candles))
	}

	extended := append(w.Candles, candle("A", 0, 9, 9, 9, 9))
	if series[3] == extended[3] {
		t.Error("append through a window must not overwrite the series")
	}
}

func TestResolve_EmptySeries(t *testing.T) {
	r, _ := NewResolver(60, 1)
	w := r.Resolve(nil, T0)
	if len(w.Candles) != 0 {
		t.Errorf("expected empty window, got %d candles", len(w.Candles))
	}

	// Alert after all data
	w = r.Resolve(flatSeries("A", T0, 5, 1.0), T0+10*60_000)
	if len(w.Candles) != 0 {
		t.Errorf("expected empty window, got %d candles", len(w.Candles))
	}
}

func TestValidateSeries(t *testing.T) {
	if err := ValidateSeries(flatSeries("A", T0, 5, 1.0)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	dup := flatSeries("A", T0, 3, 1.0)
	dup[2].TimestampMs = dup[1].TimestampMs
	if err := ValidateSeries(dup); !errors.Is(err, ErrNonMonotonic) {
		t.Errorf("expected ErrNonMonotonic, got %v", err)
	}

	mixed := append(flatSeries("A", T0, 2, 1.0), candle("B", T0+120_000, 1, 1, 1, 1))
	if err := ValidateSeries(mixed); !errors.Is(err, ErrMixedTokens) {
		t.Errorf("expected ErrMixedTokens, got %v", err)
	}
}

func TestGroupByToken_InterleavedInput(t *testing.T) {
	var mixed []*domain.Candle
	a := flatSeries("A", T0, 5, 1.0)
	b := flatSeries("B", T0, 5, 2.0)
	// Interleave in reverse time order
	for i := 4; i >= 0; i-- {
		mixed = append(mixed, b[i], a[i])
	}

	grouped := GroupByToken(mixed)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(grouped))
	}
	for token, series := range grouped {
		if err := ValidateSeries(series); err != nil {
			t.Errorf("token %s: %v", token, err)
		}
		if len(series) != 5 {
			t.Errorf("token %s: expected 5 candles, got %d", token, len(series))
		}
	}
}
