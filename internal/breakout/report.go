package breakout

import (
	"fmt"
	"strings"

	"trendradar/internal/domain"
)

// FormatClusterReport renders clusters as a plain-text report.
func FormatClusterReport(clusters []domain.BreakoutCluster) string {
	if len(clusters) == 0 {
		return "No breakout metas detected."
	}

	rule := strings.Repeat("=", 50)
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("BREAKOUT META DETECTION REPORT\n")
	b.WriteString(rule + "\n\n")

	for i, c := range clusters {
		sample := c.MemberNames
		if len(sample) > 5 {
			sample = sample[:5]
		}
		fmt.Fprintf(&b, "#%d %s\n", i+1, c.ClusterName)
		fmt.Fprintf(&b, "   Size: %d tokens\n", c.Size)
		fmt.Fprintf(&b, "   Confidence: %.1f%%\n", c.ConfidenceScore*100)
		fmt.Fprintf(&b, "   Keywords: %s\n", strings.Join(c.CommonKeywords, ", "))
		fmt.Fprintf(&b, "   Sample tokens: %s\n", strings.Join(sample, ", "))
		if i < len(clusters)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
