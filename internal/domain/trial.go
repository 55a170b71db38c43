package domain

// Optimizer objectives.
const (
	ObjectiveTotalReturn = "total_return"
	ObjectiveExpectancy  = "expectancy"
	ObjectiveWinRate     = "win_rate"
	ObjectiveMaxDrawdown = "max_drawdown"
)

// TrialMetrics summarizes the trades of one configuration.
// Returns are fractions: 0.25 = +25%.
type TrialMetrics struct {
	// Counts
	Alerts       int
	Trades       int // executed trades
	Missed       int // entries that never occurred
	Skipped      int // portfolio skips (capacity / undersized)
	Wins         int
	Losses       int
	TotalTokens  int
	WinRate      float64
	TokenWinRate float64

	// Return distribution
	TotalReturn  float64
	Expectancy   float64 // mean per-trade return
	ReturnMedian float64
	ReturnP10    float64
	ReturnP90    float64
	ReturnMin    float64
	ReturnMax    float64
	ReturnStddev float64

	// Risk (order-dependent)
	MaxDrawdown          float64
	MaxConsecutiveLosses int
}

// Objective returns the value of the named objective.
// Callers compare with ObjectiveMinimized to know the direction.
func (m *TrialMetrics) Objective(name string) (float64, bool) {
	switch name {
	case ObjectiveTotalReturn:
		return m.TotalReturn, true
	case ObjectiveExpectancy:
		return m.Expectancy, true
	case ObjectiveWinRate:
		return m.WinRate, true
	case ObjectiveMaxDrawdown:
		return m.MaxDrawdown, true
	default:
		return 0, false
	}
}

// ObjectiveMinimized reports whether smaller values of the objective are better.
func ObjectiveMinimized(name string) bool {
	return name == ObjectiveMaxDrawdown
}

// Trial is one evaluated point of a parameter grid.
type Trial struct {
	Index   int    // insertion order in the grid
	Params  string // canonical parameter string
	Key     string // cache key
	Mode    string // trade | portfolio
	Metrics TrialMetrics
	Cached  bool
}
