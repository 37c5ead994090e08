// Package export renders the cached dashboard data as downloadable documents.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/scm-dashboard/internal/dashboard"
)

var bookingHeaders = []string{
	"Booking ID", "Customer", "Service", "Quantity", "Total", "Status", "Estimated Delivery", "Actual Delivery", "Notes",
}

func bookingRecord(row dashboard.BookingRow) []string {
	return []string{
		row.ID,
		row.CustomerName,
		row.ServiceName,
		strconv.Itoa(row.Quantity),
		row.Total,
		row.StatusLabel,
		row.EstimatedDelivery,
		row.ActualDelivery,
		row.Notes,
	}
}

// WriteBookingsCSV serialises the bookings table.
func WriteBookingsCSV(w io.Writer, rows []dashboard.BookingRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(bookingHeaders); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(bookingRecord(row)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
