package optimizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/strategy"
)

// Grid errors
var (
	ErrEmptyAxis    = errors.New("every grid axis needs at least one value")
	ErrNegativeHold = errors.New("max hold must be >= 0")
)

// Axes lists the values of each grid dimension.
// A zero MaxHoldMs leaves the hold uncapped.
type Axes struct {
	Entries        []domain.EntryConfig
	TPMults        []float64
	SLMults        []float64
	IntrabarOrders []domain.IntrabarOrder
	MaxHoldMs      []int64
}

// Point is one combination of axis values.
type Point struct {
	Entry     domain.EntryConfig
	EntryID   string
	TPMult    float64
	SLMult    float64
	Order     domain.IntrabarOrder
	MaxHoldMs int64
}

// ExitConfig returns the TP/SL exit of the point.
func (p Point) ExitConfig() domain.ExitConfig {
	tp, sl := p.TPMult, p.SLMult
	cfg := domain.ExitConfig{
		ExitType:      domain.ExitTypeTakeProfitStop,
		TPMult:        &tp,
		SLMult:        &sl,
		IntrabarOrder: p.Order,
	}
	if p.MaxHoldMs > 0 {
		hold := p.MaxHoldMs
		cfg.MaxDurationMs = &hold
	}
	return cfg
}

// Params renders the point canonically, e.g. "entry=IMMEDIATE|tp=2|sl=0.5|order=tp_first|hold=0".
func (p Point) Params() string {
	return strings.Join([]string{
		"entry=" + p.EntryID,
		"tp=" + formatFloat(p.TPMult),
		"sl=" + formatFloat(p.SLMult),
		"order=" + string(p.Order),
		"hold=" + strconv.FormatInt(p.MaxHoldMs, 10),
	}, "|")
}

// Enumerate returns the Cartesian product of the axes in fixed nested order:
// entries, then tp, sl, intrabar order and hold. Every point is validated.
func (a Axes) Enumerate() ([]Point, error) {
	if len(a.Entries) == 0 || len(a.TPMults) == 0 || len(a.SLMults) == 0 ||
		len(a.IntrabarOrders) == 0 || len(a.MaxHoldMs) == 0 {
		return nil, ErrEmptyAxis
	}

	for _, hold := range a.MaxHoldMs {
		if hold < 0 {
			return nil, ErrNegativeHold
		}
	}

	entryIDs := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		s, err := strategy.EntryFromConfig(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entryIDs[i] = s.ID()
	}

	points := make([]Point, 0, len(a.Entries)*len(a.TPMults)*len(a.SLMults)*len(a.IntrabarOrders)*len(a.MaxHoldMs))
	for ei, entry := range a.Entries {
		for _, tp := range a.TPMults {
			for _, sl := range a.SLMults {
				for _, order := range a.IntrabarOrders {
					for _, hold := range a.MaxHoldMs {
						p := Point{
							Entry:     entry,
							EntryID:   entryIDs[ei],
							TPMult:    tp,
							SLMult:    sl,
							Order:     order,
							MaxHoldMs: hold,
						}
						if _, err := strategy.ExitFromConfig(p.ExitConfig()); err != nil {
							return nil, fmt.Errorf("point %s: %w", p.Params(), err)
						}
						points = append(points, p)
					}
				}
			}
		}
	}
	return points, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
