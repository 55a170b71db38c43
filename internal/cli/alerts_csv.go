package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/idhash"
)

// ErrMissingColumn is returned when the alerts header lacks a required column.
var ErrMissingColumn = errors.New("alerts csv missing column")

// ReadAlertsCSV parses alerts from a CSV with a header row.
// Required columns: token, caller, timestamp_ms. Optional: chain, alert_id.
// Rows without alert_id get the deterministic id of (token, caller, timestamp).
func ReadAlertsCSV(r io.Reader) ([]*domain.Alert, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"token", "caller", "timestamp_ms"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var alerts []*domain.Alert
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := strconv.ParseInt(get(rec, "timestamp_ms"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: timestamp_ms: %w", line, err)
		}

		a := &domain.Alert{
			AlertID:     get(rec, "alert_id"),
			Token:       get(rec, "token"),
			Chain:       get(rec, "chain"),
			Caller:      get(rec, "caller"),
			TimestampMs: ts,
		}
		if a.AlertID == "" {
			a.AlertID = idhash.ComputeAlertID(a.Token, a.Caller, a.TimestampMs)
		}
		alerts = append(alerts, a)
	}

	return alerts, nil
}
