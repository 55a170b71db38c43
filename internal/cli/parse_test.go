package cli

import (
	"errors"
	"testing"

	"alert-backtest-lab/internal/domain"
)

func TestParseFloatList(t *testing.T) {
	got, err := ParseFloatList(" 2, 3.5 ,,5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{2, 3.5, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	if _, err := ParseFloatList(" , "); !errors.Is(err, ErrEmptyList) {
		t.Errorf("expected ErrEmptyList, got %v", err)
	}
	if _, err := ParseFloatList("2,x"); err == nil {
		t.Error("expected parse error")
	}
}

func TestParseHoursList(t *testing.T) {
	got, err := ParseHoursList("0,1.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 0 || got[1] != 5_400_000 {
		t.Errorf("unexpected hours in ms: %v", got)
	}
}

func TestParseOrders(t *testing.T) {
	got, err := ParseOrders("TP_FIRST,sl_first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != domain.IntrabarTPFirst || got[1] != domain.IntrabarSLFirst {
		t.Errorf("unexpected orders: %v", got)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		spec    string
		check   func(domain.EntryConfig) bool
		wantErr bool
	}{
		{spec: "immediate", check: func(c domain.EntryConfig) bool { return c.EntryType == domain.EntryTypeImmediate }},
		{spec: "DIP_WAIT:-0.2:240", check: func(c domain.EntryConfig) bool {
			return *c.TargetDropPct == -0.2 && *c.MaxWaitMs == 240*minuteMs
		}},
		{spec: "DIP_WAIT:-0.1", check: func(c domain.EntryConfig) bool {
			return *c.TargetDropPct == -0.1 && c.MaxWaitMs == nil
		}},
		{spec: "TIME_WAIT:5", check: func(c domain.EntryConfig) bool { return *c.WaitMs == 5*minuteMs }},
		{spec: "LIMIT_ORDER:0.9:60", check: func(c domain.EntryConfig) bool {
			return *c.LimitPrice == 0.9 && *c.MaxWaitMs == 60*minuteMs
		}},
		{spec: "IMMEDIATE:1", wantErr: true},
		{spec: "TIME_WAIT", wantErr: true},
		{spec: "DIP_WAIT:abc", wantErr: true},
		{spec: "MARKET", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			cfg, err := ParseEntry(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEntry) {
					t.Errorf("expected ErrInvalidEntry, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("unexpected config %+v", cfg)
			}
		})
	}
}

func TestParseEntryList(t *testing.T) {
	got, err := ParseEntryList("IMMEDIATE,DIP_WAIT:-0.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].EntryType != domain.EntryTypeDipWait {
		t.Errorf("unexpected entries %+v", got)
	}
}

func TestParsePhases(t *testing.T) {
	phases, err := ParsePhases("0.2:2,0.3:3,0.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(phases))
	}
	if phases[0].StopPct != 0.2 || *phases[0].TargetMultiple != 2 {
		t.Errorf("unexpected first phase %+v", phases[0])
	}
	if phases[2].StopPct != 0.4 || phases[2].TargetMultiple != nil {
		t.Errorf("expected terminal phase without target, got %+v", phases[2])
	}

	for _, bad := range []string{"0.2:2:3", "x:2", "0.2:y"} {
		if _, err := ParsePhases(bad); !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("%q: expected ErrInvalidPhase, got %v", bad, err)
		}
	}
}
