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
	sb.WriteString("# Auction Statistics\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Realm != "" {
		sb.WriteString(fmt.Sprintf("Realm: %s\n\n", r.Realm))
	}

	// Snapshot
	sb.WriteString("## Snapshot\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Timestamp (ms) | %d |\n", r.SnapshotTimestamp))
	sb.WriteString(fmt.Sprintf("| Published | %s |\n", time.UnixMilli(r.SnapshotTimestamp).UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Auctions | %d |\n", r.AuctionCount))
	sb.WriteString(fmt.Sprintf("| Items | %d |\n", r.ItemCount))
	sb.WriteString(fmt.Sprintf("| Total Quantity | %d |\n", r.TotalQuantity))
	sb.WriteString(fmt.Sprintf("| Items Without Metadata | %d |\n", r.UnnamedItems))
	sb.WriteString("\n")

	// Item statistics
	sb.WriteString("## Item Statistics\n\n")
	if len(r.Rows) == 0 {
		sb.WriteString("No statistics available.\n\n")
		return sb.String()
	}

	sb.WriteString("| Item | Name | Min | Max | Average | StdDev | Quantity |\n")
	sb.WriteString("|------|------|-----|-----|---------|--------|----------|\n")
	for _, row := range r.Rows {
		name := row.Name
		if name == "" {
			name = "-"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %d |\n",
			row.ItemID, escapeCell(name),
			row.Min.StringFixed(4), row.Max.StringFixed(4),
			row.Average.StringFixed(4), row.StdDev.StringFixed(4),
			row.Count))
	}
	sb.WriteString("\n")

	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
