package strategy

import "alert-backtest-lab/internal/domain"

// Touch is the single outcome of one candle against a take-profit and a stop level.
type Touch int

const (
	TouchNone Touch = iota
	TouchTP
	TouchSL
)

// String returns the touch name.
func (t Touch) String() string {
	switch t {
	case TouchTP:
		return "tp"
	case TouchSL:
		return "sl"
	default:
		return "none"
	}
}

// ResolveIntrabar decides which level a candle filled.
// OHLC bars carry no ordering, so when both levels are inside the range
// the configured order picks the winner. A single hit ignores the order.
func ResolveIntrabar(hitTP, hitSL bool, order domain.IntrabarOrder) Touch {
	switch {
	case hitTP && hitSL:
		if order == domain.IntrabarSLFirst {
			return TouchSL
		}
		return TouchTP
	case hitTP:
		return TouchTP
	case hitSL:
		return TouchSL
	default:
		return TouchNone
	}
}
