package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"alert-backtest-lab/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// openPosition is a reserved slot with its realized outcome already known.
type openPosition struct {
	pos  domain.Position
	size decimal.Decimal
	pnl  decimal.Decimal
	seq  int
}

// Ledger is the single-owner capital state of a replay.
// Capital is free cash; committed is the sum of open position sizes.
type Ledger struct {
	capital     decimal.Decimal
	committed   decimal.Decimal
	peakEquity  decimal.Decimal
	maxDrawdown decimal.Decimal // fraction of peak equity
	open        []openPosition  // ordered by (exit time, seq)
	seq         int
}

// NewLedger creates a ledger holding initial as free capital.
func NewLedger(initial decimal.Decimal) *Ledger {
	return &Ledger{
		capital:    initial,
		peakEquity: initial,
	}
}

// Capital returns free capital.
func (l *Ledger) Capital() decimal.Decimal {
	return l.capital
}

// Equity returns free capital plus committed sizes.
func (l *Ledger) Equity() decimal.Decimal {
	return l.capital.Add(l.committed)
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int {
	return len(l.open)
}

// MaxDrawdownPct returns the worst peak-to-trough equity decline seen so far, in percent.
func (l *Ledger) MaxDrawdownPct() decimal.Decimal {
	return l.maxDrawdown.Mul(hundred)
}

// Reserve moves size from free capital into a new open position.
// pnl is the net result credited when the position is released.
func (l *Ledger) Reserve(pos domain.Position, size, pnl decimal.Decimal) {
	l.capital = l.capital.Sub(size)
	l.committed = l.committed.Add(size)

	op := openPosition{pos: pos, size: size, pnl: pnl, seq: l.seq}
	l.seq++

	i := sort.Search(len(l.open), func(i int) bool {
		o := l.open[i]
		if o.pos.ExitTimeMs != op.pos.ExitTimeMs {
			return o.pos.ExitTimeMs > op.pos.ExitTimeMs
		}
		return o.seq > op.seq
	})
	l.open = append(l.open, openPosition{})
	copy(l.open[i+1:], l.open[i:])
	l.open[i] = op

	l.sample()
}

// ReleaseUntil closes every position whose exit time is <= ts, in exit order.
// Returns the number of positions released.
func (l *Ledger) ReleaseUntil(ts int64) int {
	n := 0
	for n < len(l.open) && l.open[n].pos.ExitTimeMs <= ts {
		l.release(l.open[n])
		n++
	}
	l.open = l.open[n:]
	return n
}

// ReleaseAll closes every remaining position.
func (l *Ledger) ReleaseAll() int {
	n := len(l.open)
	for _, op := range l.open {
		l.release(op)
	}
	l.open = nil
	return n
}

func (l *Ledger) release(op openPosition) {
	l.committed = l.committed.Sub(op.size)
	l.capital = l.capital.Add(op.size).Add(op.pnl)
	l.sample()
}

// sample updates peak equity and max drawdown after a mutation.
func (l *Ledger) sample() {
	equity := l.Equity()
	if equity.GreaterThan(l.peakEquity) {
		l.peakEquity = equity
		return
	}
	if !l.peakEquity.IsPositive() {
		return
	}
	dd := l.peakEquity.Sub(equity).Div(l.peakEquity)
	if dd.GreaterThan(l.maxDrawdown) {
		l.maxDrawdown = dd
	}
}
