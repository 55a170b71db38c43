package domain

// Entry strategy types.
const (
	EntryTypeImmediate  = "IMMEDIATE"
	EntryTypeDipWait    = "DIP_WAIT"
	EntryTypeTimeWait   = "TIME_WAIT"
	EntryTypeLimitOrder = "LIMIT_ORDER"
)

// Exit strategy types.
const (
	ExitTypeStaticPhased   = "STATIC_PHASED"
	ExitTypeTrailingPhased = "TRAILING_PHASED"
	ExitTypeTakeProfitStop = "TP_SL"
)

// IntrabarOrder decides which threshold wins when one candle crosses both.
type IntrabarOrder string

const (
	IntrabarTPFirst IntrabarOrder = "tp_first"
	IntrabarSLFirst IntrabarOrder = "sl_first"
)

// IsValid checks if the order is a known value.
func (o IntrabarOrder) IsValid() bool {
	return o == IntrabarTPFirst || o == IntrabarSLFirst
}

// StopReference selects the price stops and targets are anchored to.
type StopReference string

const (
	StopReferenceAlert StopReference = "alert"
	StopReferenceEntry StopReference = "entry"
)

// IsValid checks if the reference is a known value.
func (r StopReference) IsValid() bool {
	return r == StopReferenceAlert || r == StopReferenceEntry
}

// EntryConfig represents entry strategy parameters.
type EntryConfig struct {
	EntryType string // IMMEDIATE | DIP_WAIT | TIME_WAIT | LIMIT_ORDER

	// DIP_WAIT parameters
	TargetDropPct *float64 // negative, e.g. -0.2 = 20% below alert price

	// TIME_WAIT parameters
	WaitMs *int64

	// LIMIT_ORDER parameters
	LimitPrice *float64

	// DIP_WAIT / LIMIT_ORDER
	MaxWaitMs *int64
}

// Phase is one stage of a phased exit.
// TargetMultiple nil marks a terminal phase.
type Phase struct {
	StopPct        float64
	TargetMultiple *float64
}

// ExitConfig represents exit strategy parameters.
type ExitConfig struct {
	ExitType string // STATIC_PHASED | TRAILING_PHASED | TP_SL

	// Phased parameters
	Phases []Phase

	// TP_SL parameters
	TPMult *float64
	SLMult *float64

	// Common parameters
	MaxDurationMs *int64
	IntrabarOrder IntrabarOrder
}

// SimulationConfig is the full explicit configuration of one backtest run.
type SimulationConfig struct {
	IntervalSeconds int
	HorizonHours    float64
	Entry           EntryConfig
	Exit            ExitConfig
	StopReference   StopReference
}
