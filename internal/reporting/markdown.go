package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# %s\n\n", r.Title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Portfolio
	if r.Portfolio != nil {
		p := r.Portfolio
		sb.WriteString("## Portfolio Summary\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		if p.RunID != "" {
			sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", p.RunID))
		}
		sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", p.InitialCapital))
		sb.WriteString(fmt.Sprintf("| Final Capital | %.2f |\n", p.FinalCapital))
		sb.WriteString(fmt.Sprintf("| Total Return %% | %.4f |\n", p.TotalReturnPct))
		sb.WriteString(fmt.Sprintf("| Max Drawdown %% | %.4f |\n", p.MaxDrawdownPct))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", p.WinRate))
		sb.WriteString(fmt.Sprintf("| Trades Executed | %d |\n", p.TradesExecuted))
		sb.WriteString(fmt.Sprintf("| Trades Skipped | %d |\n", p.TradesSkipped))
		if m := r.PortfolioMetrics; m != nil {
			sb.WriteString(fmt.Sprintf("| Skipped (capacity/undersized) | %d |\n", m.Skipped))
			sb.WriteString(fmt.Sprintf("| Skipped (no entry) | %d |\n", m.Missed))
			sb.WriteString(fmt.Sprintf("| Mean Trade Return | %.4f |\n", m.Expectancy))
			sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", m.MaxConsecutiveLosses))
		}
		sb.WriteString("\n")
	}

	// Grid
	if r.Best != nil {
		sb.WriteString("## Best Trial\n\n")
		sb.WriteString(fmt.Sprintf("Objective: `%s`\n\n", r.Objective))
		sb.WriteString(fmt.Sprintf("Trial %d: `%s`\n\n", r.Best.Index, r.Best.Params))

		sb.WriteString("## Trials\n\n")
		sb.WriteString("| # | Params | Trades | WinRate | Expectancy | TotalReturn | MaxDD | Cached |\n")
		sb.WriteString("|---|--------|--------|---------|------------|-------------|-------|--------|\n")
		for _, t := range r.Trials {
			m := t.Metrics
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %.4f | %.4f | %.4f | %.4f | %t |\n",
				t.Index, t.Params, m.Trades, m.WinRate, m.Expectancy, m.TotalReturn, m.MaxDrawdown, t.Cached))
		}
		sb.WriteString("\n")
	}

	// Stored configurations
	if r.Portfolio == nil && r.Best == nil {
		sb.WriteString("## Configurations\n\n")
		if len(r.Configs) > 0 {
			sb.WriteString("| Config | Alerts | Trades | Missed | WinRate | Mean | Median | P10 | P90 | MaxDD | MaxLoss |\n")
			sb.WriteString("|--------|--------|--------|--------|---------|------|--------|-----|-----|-------|---------|\n")
			for _, c := range r.Configs {
				m := c.Metrics
				sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %d |\n",
					c.ConfigID, m.Alerts, m.Trades, m.Missed, m.WinRate, m.Expectancy, m.ReturnMedian,
					m.ReturnP10, m.ReturnP90, m.MaxDrawdown, m.MaxConsecutiveLosses))
			}
		} else {
			sb.WriteString("No stored results available.\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
