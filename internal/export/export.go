// Package export renders segment members as downloadable CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/scout/internal/domain/affiliate"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the single sheet of an XLSX export.
const SheetName = "Segment"

// Header is the column row shared by every format.
var Header = []string{"Handle", "Platform", "Followers", "Engagement %", "GMV Tier", "Email"}

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Filename returns segment-export-<epoch-ms>.<format>.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("segment-export-%d.%s", now.UnixMilli(), f)
}

// ContentType returns the MIME type of f.
func ContentType(f Format) string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write renders records to w in format f.
func Write(w io.Writer, f Format, records []affiliate.Record) error {
	switch f {
	case FormatCSV:
		return CSV(w, records)
	case FormatXLSX:
		return XLSX(w, records)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// CSV writes a header row and one row per record. An empty input produces
// the header only. Engagement has one decimal and is empty when unknown.
func CSV(w io.Writer, records []affiliate.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range records {
		r := &records[i]
		row := []string{
			r.Handle,
			string(r.Platform),
			strconv.FormatInt(r.FollowerCount, 10),
			engagementText(r.EngagementRate),
			string(r.GMVTier),
			r.EmailOrEmpty(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes the same columns as CSV to a single bold-headed sheet.
func XLSX(w io.Writer, records []affiliate.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i := range records {
		r := &records[i]
		var engagement any = ""
		if r.EngagementRate != nil {
			engagement, _ = strconv.ParseFloat(engagementText(r.EngagementRate), 64)
		}
		row := []any{r.Handle, string(r.Platform), r.FollowerCount, engagement, string(r.GMVTier), r.EmailOrEmpty()}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "F", 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func engagementText(rate *float64) string {
	if rate == nil {
		return ""
	}
	return strconv.FormatFloat(affiliate.EngagementPercent(rate), 'f', 1, 64)
}
