package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/scm-dashboard/internal/dashboard"
)

const (
	bookingsSheet = "Bookings"
	columnsSheet  = "Columns"
)

// WriteBookingsXLSX writes the bookings table as a single-sheet workbook.
func WriteBookingsXLSX(w io.Writer, rows []dashboard.BookingRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", bookingsSheet); err != nil {
		return err
	}
	if err := writeHeader(f, bookingsSheet, bookingHeaders); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		record := bookingRecord(row)
		values := make([]any, len(record))
		for j, v := range record {
			values[j] = v
		}
		values[3] = row.Quantity
		if err := f.SetSheetRow(bookingsSheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(bookingsSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(bookingsSheet, "B", "C", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(bookingsSheet, "G", "H", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(bookingsSheet, "I", "I", 40); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteUploadTemplate writes an empty bulk-upload workbook carrying the column
// contract, with a second sheet documenting each column.
func WriteUploadTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", bookingsSheet); err != nil {
		return err
	}
	names := make([]string, len(dashboard.UploadColumns))
	for i, col := range dashboard.UploadColumns {
		names[i] = col.Name
	}
	if err := writeHeader(f, bookingsSheet, names); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(names))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(bookingsSheet, "A", last, 24); err != nil {
		return err
	}

	if _, err := f.NewSheet(columnsSheet); err != nil {
		return err
	}
	if err := writeHeader(f, columnsSheet, []string{"Column", "Required", "Description"}); err != nil {
		return err
	}
	for i, col := range dashboard.UploadColumns {
		required := "optional"
		if col.Required {
			required = "required"
		}
		row := []any{col.Name, required, col.Description}
		if err := f.SetSheetRow(columnsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(columnsSheet, "A", "B", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(columnsSheet, "C", "C", 52); err != nil {
		return err
	}
	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}
