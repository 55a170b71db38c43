package domain

// Portfolio skip reasons.
const (
	SkipReasonCapacity   = "capacity"
	SkipReasonUndersized = "undersized"
	SkipReasonNoEntry    = "no_entry"
)

// CostConfig holds flat per-side execution costs in basis points.
type CostConfig struct {
	TakerFeeBps float64
	SlippageBps float64
}

// PortfolioConfig bounds a capital-aware replay.
type PortfolioConfig struct {
	InitialCapital         float64
	MaxConcurrentPositions int
	MaxAllocationPct       float64 // fraction of free capital per position (0.04 = 4%)
	MaxRiskPerTrade        float64 // fraction of free capital at risk if the stop is hit
	MinExecutableSize      float64 // smallest position worth opening
	TPMult                 float64
	SLMult                 float64
	MaxHoldMs              int64
	IntrabarOrder          IntrabarOrder
	Costs                  CostConfig
}

// Position is an open or closed slot in the capital ledger.
type Position struct {
	AlertID      string
	Token        string
	Size         float64
	EntryPrice   float64
	EntryTimeMs  int64
	ExitTimeMs   int64
	StopPrice    float64
	TargetPrice  float64
	ExitMultiple float64
	Open         bool
}

// PortfolioTrade is one completed or skipped alert in a portfolio replay.
type PortfolioTrade struct {
	AlertID      string
	Token        string
	Caller       string
	AlertTimeMs  int64
	Executed     bool
	SkipReason   string
	Size         float64
	EntryPrice   float64
	EntryTimeMs  int64
	ExitTimeMs   int64
	ExitMultiple float64
	ExitReason   string
	Fees         float64
	PnL          float64
	CapitalAfter float64 // free capital right after the position opened
}

// PortfolioSummary aggregates one replay.
type PortfolioSummary struct {
	RunID          string
	InitialCapital float64
	FinalCapital   float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	WinRate        float64
	TradesExecuted int
	TradesSkipped  int
}
