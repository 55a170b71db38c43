package domain

// PathStatus classifies whether a window could be evaluated.
type PathStatus string

const (
	PathStatusOK       PathStatus = "ok"
	PathStatusMissing  PathStatus = "missing"
	PathStatusBadEntry PathStatus = "bad_entry"
)

// Drawdowns holds path drawdowns in percent (values are <= 0).
// Nil means the reference milestone was never reached.
type Drawdowns struct {
	Initial float64
	Overall float64
	Pre2x   *float64
	Post2x  *float64
	Pre3x   *float64
	Post3x  *float64
	Pre4x   *float64
	Post4x  *float64
	PostATH *float64
}

// PathMetrics is the baseline per-alert path summary.
type PathMetrics struct {
	AlertID     string
	Token       string
	Caller      string
	AlertTimeMs int64
	EntryTimeMs int64
	Status      PathStatus
	EntryPrice  float64
	ATHMultiple float64
	ATHTimeMs   int64
	Drawdowns   Drawdowns
	TimeTo2xSec *float64
	TimeTo3xSec *float64
	TimeTo4xSec *float64
	Candles     int // candles in window
}
