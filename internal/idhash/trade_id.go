package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(alert_id|config_id)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(alertID, configID string) string {
	return hashParts(alertID, configID)
}

// ComputeAlertID computes a deterministic alert_id using SHA256.
// Formula: SHA256(token|caller|timestamp_ms)
func ComputeAlertID(token, caller string, timestampMs int64) string {
	return hashParts(token, caller, fmt.Sprintf("%d", timestampMs))
}

// ComputeTrialKey hashes a dataset fingerprint and trial parameter string.
// Used as the cache key for grid trials.
func ComputeTrialKey(datasetID, params string) string {
	return hashParts(datasetID, params)
}

func hashParts(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
