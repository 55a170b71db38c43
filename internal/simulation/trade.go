package simulation

import (
	"errors"
	"fmt"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/idhash"
	"alert-backtest-lab/internal/strategy"
	"alert-backtest-lab/internal/window"
)

// Simulation errors
var (
	ErrNilStrategy          = errors.New("entry and exit strategies are required")
	ErrInvalidStopReference = errors.New("stop reference must be alert or entry")
	ErrInvalidAlertPrice    = errors.New("alert price must be positive")
)

// TradeInput is everything one (alert, configuration) simulation needs.
type TradeInput struct {
	AlertID     string
	Token       string
	Caller      string
	AlertPrice  float64
	AlertTimeMs int64

	Candles []*domain.Candle // resolved window, ascending

	Entry         strategy.EntryStrategy
	Exit          strategy.ExitStrategy
	StopReference domain.StopReference

	// ConfigID overrides the identifier derived from the strategies when set.
	ConfigID string
}

// Simulate runs entry then exit over the window.
// A missed entry is a result, not an error; exit fields stay nil.
func Simulate(input *TradeInput) (*domain.TradeResult, error) {
	if input.Entry == nil || input.Exit == nil {
		return nil, ErrNilStrategy
	}
	if !input.StopReference.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStopReference, input.StopReference)
	}
	if input.AlertPrice <= 0 {
		return nil, ErrInvalidAlertPrice
	}
	if err := window.ValidateSeries(input.Candles); err != nil {
		return nil, fmt.Errorf("alert %s: %w", input.AlertID, err)
	}

	configID := input.ConfigID
	if configID == "" {
		configID = strategy.ConfigID(input.Entry, input.Exit, input.StopReference)
	}

	result := &domain.TradeResult{
		TradeID:     idhash.ComputeTradeID(input.AlertID, configID),
		AlertID:     input.AlertID,
		Token:       input.Token,
		Caller:      input.Caller,
		ConfigID:    configID,
		AlertPrice:  input.AlertPrice,
		AlertTimeMs: input.AlertTimeMs,
	}

	entry := input.Entry.Enter(&strategy.EntryInput{
		Candles:     input.Candles,
		AlertPrice:  input.AlertPrice,
		AlertTimeMs: input.AlertTimeMs,
	})
	if entry.Occurred && entry.Price <= 0 {
		entry = &domain.EntryOutcome{MissedReason: domain.MissedBadEntryPrice}
	}
	if !entry.Occurred {
		result.Entry = *entry
		return result, nil
	}

	ref := input.AlertPrice
	if input.StopReference == domain.StopReferenceEntry {
		ref = entry.Price
	}

	exit := input.Exit.Exit(&strategy.ExitInput{
		Candles:        entry.Remaining,
		EntryPrice:     entry.Price,
		EntryTimeMs:    entry.TimestampMs,
		ReferencePrice: ref,
	})

	result.Entry = *entry
	result.Entry.Remaining = nil
	result.Exit = exit

	fromEntry := exit.Price / entry.Price
	fromAlert := exit.Price / input.AlertPrice
	result.ExitMultipleFromEntry = &fromEntry
	result.ExitMultipleFromAlert = &fromAlert

	if exit.PeakMultiple > 1 {
		peak := exit.PeakMultiple * entry.Price
		giveback := (peak - exit.Price) / peak * 100
		result.GivebackFromPeakPct = &giveback
	}

	return result, nil
}

func missedResult(alert *domain.Alert, configID, reason string) *domain.TradeResult {
	return &domain.TradeResult{
		TradeID:     idhash.ComputeTradeID(alert.AlertID, configID),
		AlertID:     alert.AlertID,
		Token:       alert.Token,
		Caller:      alert.Caller,
		ConfigID:    configID,
		AlertTimeMs: alert.TimestampMs,
		Entry:       domain.EntryOutcome{MissedReason: reason},
	}
}

// TPSLReason collapses an exit reason into tp, sl or horizon.
func TPSLReason(exitReason string) string {
	switch exitReason {
	case domain.ExitReasonTakeProfit:
		return domain.TPSLReasonTP
	case domain.ExitReasonStopLoss:
		return domain.TPSLReasonSL
	default:
		return domain.TPSLReasonHorizon
	}
}

// NewTPSLRow builds the flat TP/SL row for an alert.
// Reason and Return are only set when status is ok and the trade has an exit.
func NewTPSLRow(alert *domain.Alert, status domain.PathStatus, result *domain.TradeResult) domain.TPSLRow {
	row := domain.TPSLRow{
		AlertID:     alert.AlertID,
		Token:       alert.Token,
		Caller:      alert.Caller,
		AlertTimeMs: alert.TimestampMs,
		Status:      status,
	}
	if status != domain.PathStatusOK || result == nil || result.Exit == nil {
		return row
	}

	row.Reason = TPSLReason(result.Exit.Reason)
	row.Return = result.Exit.Price/result.Entry.Price - 1
	return row
}
