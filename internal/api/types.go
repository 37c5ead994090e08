// Package api is the HTTP/JSON client for the remote booking service.
package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ServiceType enumerates the service catalogue categories.
type ServiceType string

// Supported service types.
const (
	ServiceTypeLogistics      ServiceType = "logistics"
	ServiceTypeTransportation ServiceType = "transportation"
	ServiceTypeConsulting     ServiceType = "consulting"
)

// ServiceTypes lists the closed set of service types in display order.
var ServiceTypes = []ServiceType{ServiceTypeLogistics, ServiceTypeTransportation, ServiceTypeConsulting}

// BookingStatus is the lifecycle state reported by the booking service.
type BookingStatus string

// Booking statuses known to the dashboard.
const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusDelivered  BookingStatus = "delivered"
	StatusCancelled  BookingStatus = "cancelled"
)

// Timestamp decodes the timestamps emitted by the booking service. Values with an
// offset are RFC 3339; values without one are treated as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}
	var lastErr error
	for _, layout := range naiveLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Customer mirrors the customer record.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// Service mirrors a catalogue service.
type Service struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Type                  ServiceType `json:"type"`
	Description           *string     `json:"description,omitempty"`
	BasePrice             float64     `json:"base_price"`
	EstimatedDeliveryDays int         `json:"estimated_delivery_days"`
	CreatedAt             Timestamp   `json:"created_at"`
}

// Booking mirrors a booking record.
type Booking struct {
	ID                    string        `json:"id"`
	CustomerID            string        `json:"customer_id"`
	ServiceID             string        `json:"service_id"`
	Quantity              int           `json:"quantity"`
	Notes                 *string       `json:"notes,omitempty"`
	Status                BookingStatus `json:"status"`
	TotalPrice            float64       `json:"total_price"`
	EstimatedDeliveryDate Timestamp     `json:"estimated_delivery_date"`
	ActualDeliveryDate    *Timestamp    `json:"actual_delivery_date,omitempty"`
	CreatedAt             Timestamp     `json:"created_at"`
	UpdatedAt             Timestamp     `json:"updated_at"`
}

// AnalyticsOverview is the server-computed summary snapshot.
type AnalyticsOverview struct {
	TotalCustomers     int            `json:"total_customers"`
	TotalServices      int            `json:"total_services"`
	TotalBookings      int            `json:"total_bookings"`
	OnTimeDeliveryRate float64        `json:"on_time_delivery_rate"`
	StatusCounts       map[string]int `json:"status_counts"`
}

// DeliveryPerformanceRecord describes one completed booking. Missing day counts
// decode as zero.
type DeliveryPerformanceRecord struct {
	BookingID     string  `json:"booking_id"`
	EstimatedDays float64 `json:"estimated_days"`
	ActualDays    float64 `json:"actual_days"`
	VarianceDays  float64 `json:"variance_days"`
	OnTime        bool    `json:"on_time"`
}

// UploadResult is the outcome of a bulk booking import.
type UploadResult struct {
	Filename          string   `json:"filename,omitempty"`
	RecordsProcessed  int      `json:"records_processed"`
	SuccessfulImports int      `json:"successful_imports"`
	FailedImports     int      `json:"failed_imports"`
	Errors            []string `json:"errors"`
}

// CustomerCreate is the POST /customers payload.
type CustomerCreate struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// ServiceCreate is the POST /services payload.
type ServiceCreate struct {
	Name                  string      `json:"name"`
	Type                  ServiceType `json:"type"`
	Description           *string     `json:"description,omitempty"`
	BasePrice             float64     `json:"base_price"`
	EstimatedDeliveryDays int         `json:"estimated_delivery_days"`
}

// BookingCreate is the POST /bookings payload.
type BookingCreate struct {
	CustomerID string  `json:"customer_id"`
	ServiceID  string  `json:"service_id"`
	Quantity   int     `json:"quantity"`
	Notes      *string `json:"notes,omitempty"`
}

// BookingUpdate is the PUT /bookings/{id} payload.
type BookingUpdate struct {
	Status             BookingStatus `json:"status"`
	ActualDeliveryDate *time.Time    `json:"actual_delivery_date,omitempty"`
}
