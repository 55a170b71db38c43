package domain

// Entry missed reasons.
const (
	MissedNoCandles              = "no_candles"
	MissedDipNeverOccurred       = "dip_never_occurred"
	MissedLimitNeverFilled       = "limit_never_filled"
	MissedObservationWindowEnded = "observation_window_ended"
	MissedBadEntryPrice          = "bad_entry_price"
	// MissedTimeoutPrefix is followed by the wait in hours, e.g. "timeout_4h".
	MissedTimeoutPrefix = "timeout_"
)

// Exit reason codes.
const (
	ExitReasonTakeProfit = "take_profit"
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTimeExit   = "time_exit"
	ExitReasonEndOfData  = "end_of_data"
	ExitReasonNoData     = "no_data"
)

// EntryOutcome describes whether and how a position opened.
type EntryOutcome struct {
	Occurred      bool
	Price         float64   // fill price (0 when missed)
	TimestampMs   int64     // fill time (0 when missed)
	TimeToEntryMs int64     // fill time minus alert time
	Remaining     []*Candle // candles strictly after the fill candle (view into the window)
	MissedReason  string    // set only when Occurred is false
}

// Milestones records which entry multiples were reached while the position was open.
type Milestones struct {
	Hit2x  bool
	Hit3x  bool
	Hit4x  bool
	Hit5x  bool
	Hit10x bool
}

// Set marks the milestone for multiple m (2, 3, 4, 5 or 10).
func (m *Milestones) Set(multiple int) {
	switch multiple {
	case 2:
		m.Hit2x = true
	case 3:
		m.Hit3x = true
	case 4:
		m.Hit4x = true
	case 5:
		m.Hit5x = true
	case 10:
		m.Hit10x = true
	}
}

// MilestoneMultiples lists the tracked milestone multiples in ascending order.
var MilestoneMultiples = []int{2, 3, 4, 5, 10}

// ExitOutcome describes how a position closed.
type ExitOutcome struct {
	Price        float64 // fill price
	TimestampMs  int64   // open time of the exit candle
	Reason       string  // exit reason code
	PeakMultiple float64 // highest high up to the exit candle / entry price
	ATHMultiple  float64 // highest high over all supplied candles / entry price
	Milestones   Milestones
}

// TradeResult is the outcome of one (alert, configuration) pair.
// Exit-dependent fields are nil when the entry never occurred.
type TradeResult struct {
	TradeID  string // deterministic hash
	AlertID  string
	Token    string
	Caller   string
	ConfigID string // strategy pair identifier

	AlertPrice  float64
	AlertTimeMs int64

	Entry EntryOutcome
	Exit  *ExitOutcome

	ExitMultipleFromEntry *float64
	ExitMultipleFromAlert *float64
	GivebackFromPeakPct   *float64
}

// TP/SL row exit reasons.
const (
	TPSLReasonTP      = "tp"
	TPSLReasonSL      = "sl"
	TPSLReasonHorizon = "horizon"
)

// TPSLRow is the flat per-alert output of a fixed take-profit / stop-loss simulation.
type TPSLRow struct {
	AlertID     string
	Token       string
	Caller      string
	AlertTimeMs int64
	Status      PathStatus
	Reason      string  // tp | sl | horizon (empty unless Status is ok)
	Return      float64 // exit / entry - 1
}
