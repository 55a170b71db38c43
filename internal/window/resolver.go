// Package window aligns alerts to candle boundaries and carves end-exclusive
// observation windows out of a token's candle series.
package window

import (
	"errors"
	"math"
	"sort"

	"alert-backtest-lab/internal/domain"
)

// Errors returned by window construction and series validation.
var (
	ErrInvalidInterval = errors.New("interval_seconds must be positive")
	ErrInvalidHorizon  = errors.New("horizon_hours must be positive")
	ErrNonMonotonic    = errors.New("candle timestamps are not strictly increasing")
	ErrMixedTokens     = errors.New("candle series mixes tokens")
)

// Window is the end-exclusive candle range [EntryTimeMs, EndTimeMs) visible to one alert.
type Window struct {
	AlertTimeMs int64
	EntryTimeMs int64
	EndTimeMs   int64
	Candles     []*domain.Candle // sub-slice of the token series, capacity capped
}

// Resolver holds the explicit interval and horizon of a run.
type Resolver struct {
	intervalMs int64
	horizonMs  int64
}

// NewResolver creates a resolver for the given bar interval and observation horizon.
func NewResolver(intervalSeconds int, horizonHours float64) (*Resolver, error) {
	if intervalSeconds <= 0 {
		return nil, ErrInvalidInterval
	}
	if horizonHours <= 0 || math.IsNaN(horizonHours) || math.IsInf(horizonHours, 0) {
		return nil, ErrInvalidHorizon
	}
	return &Resolver{
		intervalMs: int64(intervalSeconds) * 1000,
		horizonMs:  int64(math.Round(horizonHours * 3_600_000)),
	}, nil
}

// IntervalMs returns the bar width in milliseconds.
func (r *Resolver) IntervalMs() int64 {
	return r.intervalMs
}

// HorizonMs returns the observation horizon in milliseconds.
func (r *Resolver) HorizonMs() int64 {
	return r.horizonMs
}

// EntryTime returns the aligned entry timestamp for an alert.
func (r *Resolver) EntryTime(alertMs int64) int64 {
	return alignMs(alertMs, r.intervalMs)
}

// Resolve returns the window of series visible to an alert at alertMs.
// series must be one token's candles sorted by timestamp (see ValidateSeries).
func (r *Resolver) Resolve(series []*domain.Candle, alertMs int64) Window {
	entry := r.EntryTime(alertMs)
	end := entry + r.horizonMs
	return Window{
		AlertTimeMs: alertMs,
		EntryTimeMs: entry,
		EndTimeMs:   end,
		Candles:     Slice(series, entry, end),
	}
}

// AlignEntry returns ceil(alertMs / interval) * interval.
// An alert exactly on a boundary maps to that boundary.
func AlignEntry(alertMs int64, intervalSeconds int) int64 {
	return alignMs(alertMs, int64(intervalSeconds)*1000)
}

func alignMs(alertMs, intervalMs int64) int64 {
	q := alertMs / intervalMs
	if alertMs%intervalMs > 0 {
		q++
	}
	return q * intervalMs
}

// Slice returns the candles with start <= timestamp < end.
// The result shares the backing array of series; its capacity is capped at its
// length so appends can never reach candles past the window.
func Slice(series []*domain.Candle, start, end int64) []*domain.Candle {
	lo := sort.Search(len(series), func(i int) bool {
		return series[i].TimestampMs >= start
	})
	hi := sort.Search(len(series), func(i int) bool {
		return series[i].TimestampMs >= end
	})
	if hi < lo {
		hi = lo
	}
	return series[lo:hi:hi]
}

// ValidateSeries checks that candles belong to one token and are strictly increasing in time.
func ValidateSeries(series []*domain.Candle) error {
	for i := 1; i < len(series); i++ {
		if series[i].Token != series[0].Token {
			return ErrMixedTokens
		}
		if series[i].TimestampMs <= series[i-1].TimestampMs {
			return ErrNonMonotonic
		}
	}
	return nil
}

// GroupByToken splits a multi-token candle sequence into per-token series sorted by time.
// Relative order of equal timestamps is preserved so ValidateSeries still reports duplicates.
func GroupByToken(candles []*domain.Candle) map[string][]*domain.Candle {
	grouped := make(map[string][]*domain.Candle)
	for _, c := range candles {
		grouped[c.Token] = append(grouped[c.Token], c)
	}
	for _, series := range grouped {
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].TimestampMs < series[j].TimestampMs
		})
	}
	return grouped
}
