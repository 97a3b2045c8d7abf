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
	sb.WriteString("# Trend Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.SnapshotTime > 0 {
		sb.WriteString(fmt.Sprintf("As of: %s | Window: %s | Breakout threshold: %.0f\n\n",
			time.UnixMilli(r.SnapshotTime).UTC().Format(time.RFC3339), r.TimeWindow, r.Threshold))
	} else {
		sb.WriteString("No aggregation run stored yet.\n\n")
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Tokens | %d |\n", r.Summary.TotalTokens))
	sb.WriteString(fmt.Sprintf("| Classified Tokens | %d |\n", r.Summary.ClassifiedTokens))
	sb.WriteString(fmt.Sprintf("| Category Keys | %d |\n", r.Summary.CategoryKeys))
	sb.WriteString(fmt.Sprintf("| Breakout Metas | %d |\n", r.Summary.BreakoutMetas))
	sb.WriteString(fmt.Sprintf("| Flagged Emergent Tokens | %d |\n", r.Summary.FlaggedTokens))
	sb.WriteString("\n")

	// Top trends
	sb.WriteString("## Top Accelerating Trends\n\n")
	writeTrendTable(&sb, r.TopTrends, "No accelerating trends.")

	// Breakout metas
	sb.WriteString("## Breakout Metas\n\n")
	writeTrendTable(&sb, r.BreakoutMetas, "No breakout metas.")

	// Emergent clusters
	sb.WriteString("## Emergent Clusters\n\n")
	if len(r.EmergentClusters) > 0 {
		for _, c := range r.EmergentClusters {
			sb.WriteString(fmt.Sprintf("### %s (%d tokens)\n\n", c.ClusterName, len(c.Tokens)))
			for _, t := range c.Tokens {
				sb.WriteString(fmt.Sprintf("- %s (%s) `%s`\n", t.Name, t.Symbol, t.Address))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("No emergent clusters flagged.\n\n")
	}

	return sb.String()
}

func writeTrendTable(sb *strings.Builder, rows []TrendRow, empty string) {
	if len(rows) == 0 {
		sb.WriteString(empty + "\n\n")
		return
	}

	sb.WriteString("| # | Category | Coins | Total MCap | Top Coin | Score | Tier | 1h | 24h |\n")
	sb.WriteString("|---|----------|-------|------------|----------|-------|------|----|-----|\n")
	for i, row := range rows {
		label := row.Emoji + " " + row.Label()
		if row.IsBreakoutMeta {
			label += " **BREAKOUT**"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s | %.2f | %s | %s | %s |\n",
			i+1, label, row.CoinCount, formatUSD(row.TotalMarketCap), row.TopCoinName,
			row.AccelerationScore, row.Tier, formatChange(row.Change1h), formatChange(row.Change24h)))
	}
	sb.WriteString("\n")
}

// formatUSD abbreviates a dollar amount: $1.25M, $470.0K, $950.
func formatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func formatChange(pct *float64) string {
	if pct == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *pct)
}
