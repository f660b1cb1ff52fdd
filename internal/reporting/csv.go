package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

var statisticsHeader = []string{"item_id", "name", "min", "max", "average", "stddev", "quantity"}

// RenderCSV renders statistics rows as a CSV string.
func RenderCSV(rows []StatisticsRow) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write(statisticsHeader)
	for _, r := range rows {
		_ = w.Write([]string{
			strconv.FormatInt(r.ItemID, 10),
			r.Name,
			r.Min.StringFixed(8),
			r.Max.StringFixed(8),
			r.Average.StringFixed(8),
			r.StdDev.StringFixed(8),
			strconv.FormatInt(r.Count, 10),
		})
	}
	w.Flush()

	return sb.String()
}
