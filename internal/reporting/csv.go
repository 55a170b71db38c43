package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"alert-backtest-lab/internal/domain"
)

// RenderPathCSV renders path metrics rows as CSV string.
// Unreached milestones and drawdowns are empty cells.
func RenderPathCSV(rows []*domain.PathMetrics) string {
	var sb strings.Builder

	// Header
	sb.WriteString("alert_id,token,caller,alert_ts_ms,entry_ts_ms,status,candles,entry_price,ath_multiple,ath_ts_ms,")
	sb.WriteString("dd_initial,dd_overall,dd_pre2x,dd_post2x,dd_pre3x,dd_post3x,dd_pre4x,dd_post4x,dd_post_ath,")
	sb.WriteString("time_to_2x_s,time_to_3x_s,time_to_4x_s\n")

	// Rows
	for _, m := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%s,%d,",
			field(m.AlertID), field(m.Token), field(m.Caller),
			m.AlertTimeMs, m.EntryTimeMs, m.Status, m.Candles))

		if m.Status != domain.PathStatusOK {
			sb.WriteString(",,,,,,,,,,,,,,\n")
			continue
		}

		d := m.Drawdowns
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			num(m.EntryPrice), num(m.ATHMultiple), m.ATHTimeMs,
			num(d.Initial), num(d.Overall),
			optNum(d.Pre2x), optNum(d.Post2x), optNum(d.Pre3x), optNum(d.Post3x),
			optNum(d.Pre4x), optNum(d.Post4x), optNum(d.PostATH),
			optNum(m.TimeTo2xSec), optNum(m.TimeTo3xSec), optNum(m.TimeTo4xSec),
		))
	}

	return sb.String()
}

// RenderTPSLCSV renders TP/SL rows as CSV string.
func RenderTPSLCSV(rows []domain.TPSLRow) string {
	var sb strings.Builder

	sb.WriteString("alert_id,token,caller,alert_ts_ms,status,tp_sl_exit_reason,tp_sl_ret\n")

	for _, r := range rows {
		ret := ""
		if r.Status == domain.PathStatusOK && r.Reason != "" {
			ret = num(r.Return)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%s,%s,%s\n",
			field(r.AlertID), field(r.Token), field(r.Caller),
			r.AlertTimeMs, r.Status, r.Reason, ret))
	}

	return sb.String()
}

// RenderTradeResultsCSV renders trade results as CSV string.
// Exit columns are empty when the entry was missed.
func RenderTradeResultsCSV(results []*domain.TradeResult) string {
	var sb strings.Builder

	sb.WriteString("trade_id,alert_id,token,caller,config_id,alert_price,alert_ts_ms,")
	sb.WriteString("entry_occurred,entry_price,entry_ts_ms,time_to_entry_ms,missed_reason,")
	sb.WriteString("exit_price,exit_ts_ms,exit_reason,peak_multiple,ath_multiple,")
	sb.WriteString("hit_2x,hit_3x,hit_4x,hit_5x,hit_10x,")
	sb.WriteString("exit_mult_from_entry,exit_mult_from_alert,giveback_from_peak_pct\n")

	for _, r := range results {
		e := r.Entry
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%d,%t,",
			r.TradeID, field(r.AlertID), field(r.Token), field(r.Caller), field(r.ConfigID),
			num(r.AlertPrice), r.AlertTimeMs, e.Occurred))

		if !e.Occurred || r.Exit == nil {
			sb.WriteString(fmt.Sprintf(",,,%s,,,,,,,,,,,,,\n", e.MissedReason))
			continue
		}

		x := r.Exit
		ms := x.Milestones
		sb.WriteString(fmt.Sprintf("%s,%d,%d,,%s,%d,%s,%s,%s,%t,%t,%t,%t,%t,%s,%s,%s\n",
			num(e.Price), e.TimestampMs, e.TimeToEntryMs,
			num(x.Price), x.TimestampMs, x.Reason, num(x.PeakMultiple), num(x.ATHMultiple),
			ms.Hit2x, ms.Hit3x, ms.Hit4x, ms.Hit5x, ms.Hit10x,
			optNum(r.ExitMultipleFromEntry), optNum(r.ExitMultipleFromAlert), optNum(r.GivebackFromPeakPct),
		))
	}

	return sb.String()
}

// RenderPortfolioTradesCSV renders portfolio replay rows as CSV string.
func RenderPortfolioTradesCSV(trades []domain.PortfolioTrade) string {
	var sb strings.Builder

	sb.WriteString("alert_id,token,caller,alert_ts_ms,executed,skip_reason,size,entry_price,entry_ts_ms,")
	sb.WriteString("exit_ts_ms,exit_multiple,exit_reason,fees,pnl,capital_after\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%t,%s,",
			field(t.AlertID), field(t.Token), field(t.Caller), t.AlertTimeMs, t.Executed, t.SkipReason))

		if !t.Executed {
			sb.WriteString(",,,,,,,,\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%s,%s,%s,%s,%s\n",
			num(t.Size), num(t.EntryPrice), t.EntryTimeMs, t.ExitTimeMs,
			num(t.ExitMultiple), t.ExitReason, num(t.Fees), num(t.PnL), num(t.CapitalAfter)))
	}

	return sb.String()
}

// RenderTrialsCSV renders grid trials as CSV string.
func RenderTrialsCSV(trials []domain.Trial) string {
	var sb strings.Builder

	sb.WriteString("trial,mode,params,alerts,trades,missed,skipped,wins,losses,win_rate,token_win_rate,")
	sb.WriteString("total_return,expectancy,return_median,return_p10,return_p90,return_stddev,")
	sb.WriteString("max_drawdown,max_consecutive_losses,cached\n")

	for _, t := range trials {
		m := t.Metrics
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%d,%d,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%t\n",
			t.Index, t.Mode, field(t.Params),
			m.Alerts, m.Trades, m.Missed, m.Skipped, m.Wins, m.Losses,
			m.WinRate, m.TokenWinRate,
			m.TotalReturn, m.Expectancy, m.ReturnMedian, m.ReturnP10, m.ReturnP90, m.ReturnStddev,
			m.MaxDrawdown, m.MaxConsecutiveLosses, t.Cached,
		))
	}

	return sb.String()
}

// field quotes a value containing a comma, quote or newline.
func field(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optNum(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}
