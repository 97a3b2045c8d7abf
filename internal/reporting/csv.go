package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders trend rows as CSV string.
func RenderCSV(rows []TrendRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("category,sub_category,coin_count,total_market_cap,avg_market_cap,")
	sb.WriteString("top_coin_name,acceleration_score,tier,is_breakout_meta,")
	sb.WriteString("change_1h,change_24h\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%.2f,%.2f,%s,%.2f,%s,%t,%s,%s\n",
			csvField(r.Category),
			csvField(r.SubCategory),
			r.CoinCount,
			r.TotalMarketCap,
			r.AvgMarketCap,
			csvField(r.TopCoinName),
			r.AccelerationScore,
			r.Tier,
			r.IsBreakoutMeta,
			csvChange(r.Change1h),
			csvChange(r.Change24h),
		))
	}

	return sb.String()
}

// csvField quotes values containing separators or quotes.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func csvChange(pct *float64) string {
	if pct == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *pct)
}
