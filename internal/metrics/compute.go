package metrics

import (
	"math"
	"sort"

	"alert-backtest-lab/internal/domain"
)

// Sample is one executed trade reduced to what the statistics need.
type Sample struct {
	ID     string // tie-break for equal times
	Token  string
	TimeMs int64
	Return float64 // fraction, 0.25 = +25%
}

// FromTradeResults computes trial metrics for independent per-alert trades.
// TotalReturn is the sum of per-trade returns; MaxDrawdown is taken on the cumulative sum.
func FromTradeResults(results []*domain.TradeResult) domain.TrialMetrics {
	samples := make([]Sample, 0, len(results))
	missed := 0
	for _, r := range results {
		if r.Exit == nil || r.ExitMultipleFromEntry == nil {
			missed++
			continue
		}
		samples = append(samples, Sample{
			ID:     r.AlertID,
			Token:  r.Token,
			TimeMs: r.AlertTimeMs,
			Return: *r.ExitMultipleFromEntry - 1,
		})
	}

	m := computeFromSamples(samples)
	m.Alerts = len(results)
	m.Missed = missed
	for _, s := range samples {
		m.TotalReturn += s.Return
	}
	return m
}

// FromPortfolio computes trial metrics for a capital-aware replay.
// Per-trade returns are net PnL over size; totals and drawdown come from the ledger summary.
func FromPortfolio(trades []domain.PortfolioTrade, summary domain.PortfolioSummary) domain.TrialMetrics {
	samples := make([]Sample, 0, len(trades))
	missed, skipped := 0, 0
	for _, t := range trades {
		if !t.Executed {
			if t.SkipReason == domain.SkipReasonNoEntry {
				missed++
			} else {
				skipped++
			}
			continue
		}
		ret := 0.0
		if t.Size > 0 {
			ret = t.PnL / t.Size
		}
		samples = append(samples, Sample{
			ID:     t.AlertID,
			Token:  t.Token,
			TimeMs: t.AlertTimeMs,
			Return: ret,
		})
	}

	m := computeFromSamples(samples)
	m.Alerts = len(trades)
	m.Missed = missed
	m.Skipped = skipped
	m.TotalReturn = summary.TotalReturnPct / 100
	m.MaxDrawdown = summary.MaxDrawdownPct / 100
	return m
}

// computeFromSamples calculates distribution and order-dependent metrics.
// Samples are sorted by TimeMs ASC, ID ASC before computing MaxDrawdown and MaxConsecutiveLosses.
func computeFromSamples(samples []Sample) domain.TrialMetrics {
	n := len(samples)
	if n == 0 {
		return domain.TrialMetrics{}
	}

	sorted := make([]Sample, n)
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TimeMs != sorted[j].TimeMs {
			return sorted[i].TimeMs < sorted[j].TimeMs
		}
		return sorted[i].ID < sorted[j].ID
	})

	wins := 0
	returns := make([]float64, n)
	for i, s := range sorted {
		returns[i] = s.Return
		if s.Return > 0 {
			wins++
		}
	}

	sortedReturns := make([]float64, n)
	copy(sortedReturns, returns)
	sort.Float64s(sortedReturns)

	mean := computeMean(returns)
	totalTokens, tokenWinRate := computeTokenWinRate(sorted)

	return domain.TrialMetrics{
		Trades:       n,
		Wins:         wins,
		Losses:       n - wins,
		TotalTokens:  totalTokens,
		WinRate:      computeWinRate(wins, n),
		TokenWinRate: tokenWinRate,

		Expectancy:   mean,
		ReturnMedian: computePercentile(sortedReturns, 0.50),
		ReturnP10:    computePercentile(sortedReturns, 0.10),
		ReturnP90:    computePercentile(sortedReturns, 0.90),
		ReturnMin:    sortedReturns[0],
		ReturnMax:    sortedReturns[n-1],
		ReturnStddev: computeStddev(returns, mean),

		MaxDrawdown:          computeMaxDrawdown(returns),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(returns),
	}
}

// computeTokenWinRate groups samples by token; a token wins if at least one trade was positive.
func computeTokenWinRate(samples []Sample) (int, float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	positive := make(map[string]bool)
	for _, s := range samples {
		positive[s.Token] = positive[s.Token] || s.Return > 0
	}

	winning := 0
	for _, p := range positive {
		if p {
			winning++
		}
	}
	return len(positive), float64(winning) / float64(len(positive))
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative returns.
// Returns must be in chronological order.
func computeMaxDrawdown(returns []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, r := range returns {
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds longest streak of return <= 0.
func computeMaxConsecutiveLosses(returns []float64) int {
	maxStreak := 0
	current := 0

	for _, r := range returns {
		if r <= 0 {
			current++
			if current > maxStreak {
				maxStreak = current
			}
		} else {
			current = 0
		}
	}
	return maxStreak
}
