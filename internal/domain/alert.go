package domain

// Alert is a timestamped call naming a token, the trigger for one simulated trade.
// Corresponds to alerts table in PostgreSQL.
type Alert struct {
	AlertID     string // PRIMARY KEY, deterministic hash of (token, caller, timestamp)
	Token       string // token address / symbol
	Chain       string // chain hint, may be empty
	Caller      string // who raised the alert
	TimestampMs int64  // alert time, Unix milliseconds
}
