package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"alert-backtest-lab/internal/domain"
)

// Parse errors
var (
	ErrEmptyList    = errors.New("list is empty")
	ErrInvalidEntry = errors.New("invalid entry spec")
	ErrInvalidPhase = errors.New("invalid phase spec")
)

const minuteMs = int64(time.Minute / time.Millisecond)

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseFloatList parses "2,3,5" into floats.
func ParseFloatList(s string) ([]float64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, ErrEmptyList
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParseHoursList parses hours such as "0,4,12" into milliseconds.
func ParseHoursList(s string) ([]int64, error) {
	hours, err := ParseFloatList(s)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(hours))
	for i, h := range hours {
		out[i] = int64(h * float64(time.Hour/time.Millisecond))
	}
	return out, nil
}

// ParseOrders parses "tp_first,sl_first". Validation is left to the strategy factory.
func ParseOrders(s string) ([]domain.IntrabarOrder, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, ErrEmptyList
	}
	out := make([]domain.IntrabarOrder, len(parts))
	for i, p := range parts {
		out[i] = domain.IntrabarOrder(strings.ToLower(p))
	}
	return out, nil
}

// ParseEntry parses one entry spec:
//
//	IMMEDIATE
//	DIP_WAIT:<drop fraction>[:<max wait minutes>]   e.g. DIP_WAIT:-0.2:240
//	TIME_WAIT:<wait minutes>
//	LIMIT_ORDER:<price>[:<max wait minutes>]
func ParseEntry(s string) (domain.EntryConfig, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	cfg := domain.EntryConfig{EntryType: strings.ToUpper(parts[0])}
	args := parts[1:]

	num := func(i int) (float64, error) {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return 0, fmt.Errorf("%w %q: %v", ErrInvalidEntry, s, err)
		}
		return v, nil
	}
	maxWait := func(i int) error {
		if len(args) <= i {
			return nil
		}
		v, err := num(i)
		if err != nil {
			return err
		}
		ms := int64(v * float64(minuteMs))
		cfg.MaxWaitMs = &ms
		return nil
	}

	switch cfg.EntryType {
	case domain.EntryTypeImmediate:
		if len(args) != 0 {
			return cfg, fmt.Errorf("%w %q: IMMEDIATE takes no arguments", ErrInvalidEntry, s)
		}
	case domain.EntryTypeDipWait, domain.EntryTypeLimitOrder:
		if len(args) < 1 || len(args) > 2 {
			return cfg, fmt.Errorf("%w %q: expected 1 or 2 arguments", ErrInvalidEntry, s)
		}
		v, err := num(0)
		if err != nil {
			return cfg, err
		}
		if cfg.EntryType == domain.EntryTypeDipWait {
			cfg.TargetDropPct = &v
		} else {
			cfg.LimitPrice = &v
		}
		if err := maxWait(1); err != nil {
			return cfg, err
		}
	case domain.EntryTypeTimeWait:
		if len(args) != 1 {
			return cfg, fmt.Errorf("%w %q: expected wait minutes", ErrInvalidEntry, s)
		}
		v, err := num(0)
		if err != nil {
			return cfg, err
		}
		ms := int64(v * float64(minuteMs))
		cfg.WaitMs = &ms
	default:
		return cfg, fmt.Errorf("%w %q: unknown type", ErrInvalidEntry, s)
	}
	return cfg, nil
}

// ParseEntryList parses comma-separated entry specs.
func ParseEntryList(s string) ([]domain.EntryConfig, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, ErrEmptyList
	}
	out := make([]domain.EntryConfig, len(parts))
	for i, p := range parts {
		cfg, err := ParseEntry(p)
		if err != nil {
			return nil, err
		}
		out[i] = cfg
	}
	return out, nil
}

// ParsePhases parses "stop:target" pairs such as "0.2:2,0.3:3,0.4".
// The last phase may omit its target.
func ParsePhases(s string) ([]domain.Phase, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, ErrEmptyList
	}
	phases := make([]domain.Phase, len(parts))
	for i, p := range parts {
		fields := strings.Split(p, ":")
		if len(fields) > 2 {
			return nil, fmt.Errorf("%w %q", ErrInvalidPhase, p)
		}
		stop, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPhase, p, err)
		}
		phases[i].StopPct = stop
		if len(fields) == 2 {
			target, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrInvalidPhase, p, err)
			}
			phases[i].TargetMultiple = &target
		}
	}
	return phases, nil
}
