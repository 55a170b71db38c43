// Package verification re-simulates stored trade results and reports
// every field that no longer matches.
package verification

import (
	"context"
	"math"

	"alert-backtest-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // stored value
	Actual   any    // replayed value
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID     string
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	ConfigID        string
	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int
	Results         []VerificationResult
}

// Verifier replays stored trade results.
type Verifier interface {
	// VerifyTrade re-simulates one stored result and compares every persisted field.
	VerifyTrade(ctx context.Context, tradeID string) (*VerificationResult, error)

	// VerifyConfig verifies every stored result of a configuration.
	VerifyConfig(ctx context.Context, configID string) (*VerificationReport, error)
}

type comparer struct {
	divergences []FieldDivergence
}

func (c *comparer) add(field string, expected, actual any) {
	c.divergences = append(c.divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
}

func (c *comparer) str(field, a, b string) {
	if a != b {
		c.add(field, a, b)
	}
}

func (c *comparer) i64(field string, a, b int64) {
	if a != b {
		c.add(field, a, b)
	}
}

func (c *comparer) boolean(field string, a, b bool) {
	if a != b {
		c.add(field, a, b)
	}
}

func (c *comparer) float(field string, a, b float64) {
	if !floatEquals(a, b) {
		c.add(field, a, b)
	}
}

func (c *comparer) floatPtr(field string, a, b *float64) {
	if !floatPtrEquals(a, b) {
		c.add(field, a, b)
	}
}

// CompareTradeResults compares the persisted fields of two results.
// Remaining entry candles are not persisted and are ignored.
func CompareTradeResults(stored, replayed *domain.TradeResult) []FieldDivergence {
	c := &comparer{}

	c.str("TradeID", stored.TradeID, replayed.TradeID)
	c.str("AlertID", stored.AlertID, replayed.AlertID)
	c.str("Token", stored.Token, replayed.Token)
	c.str("Caller", stored.Caller, replayed.Caller)
	c.str("ConfigID", stored.ConfigID, replayed.ConfigID)
	c.float("AlertPrice", stored.AlertPrice, replayed.AlertPrice)
	c.i64("AlertTimeMs", stored.AlertTimeMs, replayed.AlertTimeMs)

	// Entry
	se, re := stored.Entry, replayed.Entry
	c.boolean("Entry.Occurred", se.Occurred, re.Occurred)
	c.float("Entry.Price", se.Price, re.Price)
	c.i64("Entry.TimestampMs", se.TimestampMs, re.TimestampMs)
	c.i64("Entry.TimeToEntryMs", se.TimeToEntryMs, re.TimeToEntryMs)
	c.str("Entry.MissedReason", se.MissedReason, re.MissedReason)

	// Exit
	switch {
	case stored.Exit == nil && replayed.Exit == nil:
	case stored.Exit == nil || replayed.Exit == nil:
		c.add("Exit", stored.Exit != nil, replayed.Exit != nil)
	default:
		sx, rx := stored.Exit, replayed.Exit
		c.float("Exit.Price", sx.Price, rx.Price)
		c.i64("Exit.TimestampMs", sx.TimestampMs, rx.TimestampMs)
		c.str("Exit.Reason", sx.Reason, rx.Reason)
		c.float("Exit.PeakMultiple", sx.PeakMultiple, rx.PeakMultiple)
		c.float("Exit.ATHMultiple", sx.ATHMultiple, rx.ATHMultiple)
		if sx.Milestones != rx.Milestones {
			c.add("Exit.Milestones", sx.Milestones, rx.Milestones)
		}
	}

	// Outcome
	c.floatPtr("ExitMultipleFromEntry", stored.ExitMultipleFromEntry, replayed.ExitMultipleFromEntry)
	c.floatPtr("ExitMultipleFromAlert", stored.ExitMultipleFromAlert, replayed.ExitMultipleFromAlert)
	c.floatPtr("GivebackFromPeakPct", stored.GivebackFromPeakPct, replayed.GivebackFromPeakPct)

	return c.divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}
