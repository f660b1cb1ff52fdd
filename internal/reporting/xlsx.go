package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet    = "Snapshot"
	statisticsSheet = "Statistics"
)

// WriteXLSX writes the report as an Excel workbook with a summary sheet and
// one statistics row per item. Prices are written as numbers.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Generated", r.GeneratedAt.Format(time.RFC3339)},
		{"Realm", r.Realm},
		{"Snapshot Timestamp (ms)", r.SnapshotTimestamp},
		{"Snapshot URL", r.SnapshotURL},
		{"Auctions", r.AuctionCount},
		{"Items", r.ItemCount},
		{"Total Quantity", r.TotalQuantity},
		{"Items Without Metadata", r.UnnamedItems},
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(statisticsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header := make([]interface{}, len(statisticsHeader))
	for i, h := range statisticsHeader {
		header[i] = h
	}
	if err := setRow(f, statisticsSheet, 1, header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(statisticsHeader))
	if err := f.SetCellStyle(statisticsSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, s := range r.Rows {
		row := []interface{}{
			s.ItemID,
			s.Name,
			s.Min.InexactFloat64(),
			s.Max.InexactFloat64(),
			s.Average.InexactFloat64(),
			s.StdDev.InexactFloat64(),
			s.Count,
		}
		if err := setRow(f, statisticsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
