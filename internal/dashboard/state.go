// Package dashboard owns the per-session view state of the booking dashboard and the
// load/mutation protocol against the booking service.
package dashboard

import (
	"github.com/odyssey-erp/scm-dashboard/internal/api"
)

// Tab identifies one of the dashboard sections.
type Tab string

// Dashboard tabs in display order.
const (
	TabOverview  Tab = "overview"
	TabCustomers Tab = "customers"
	TabServices  Tab = "services"
	TabBookings  Tab = "bookings"
	TabUpload    Tab = "upload"
	TabAnalytics Tab = "analytics"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabOverview, TabCustomers, TabServices, TabBookings, TabUpload, TabAnalytics}

// ParseTab maps raw input to a tab, falling back to the overview.
func ParseTab(raw string) Tab {
	for _, tab := range Tabs {
		if string(tab) == raw {
			return tab
		}
	}
	return TabOverview
}

// Kind names the write operations the dashboard can issue.
type Kind string

// Write kinds.
const (
	KindNone           Kind = ""
	KindCreateCustomer Kind = "create_customer"
	KindCreateService  Kind = "create_service"
	KindCreateBooking  Kind = "create_booking"
	KindUpdateStatus   Kind = "update_status"
	KindUpload         Kind = "upload"
)

// CustomerDraft holds the customer form as typed.
type CustomerDraft struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// ServiceDraft holds the service form as typed.
type ServiceDraft struct {
	Name                  string `json:"name" validate:"required"`
	Type                  string `json:"type" validate:"required,oneof=logistics transportation consulting"`
	Description           string `json:"description"`
	BasePrice             string `json:"base_price" validate:"required"`
	EstimatedDeliveryDays string `json:"estimated_delivery_days" validate:"required"`
}

// BookingDraft holds the booking form as typed.
type BookingDraft struct {
	CustomerID string `json:"customer_id" validate:"required"`
	ServiceID  string `json:"service_id" validate:"required"`
	Quantity   string `json:"quantity" validate:"required"`
	Notes      string `json:"notes"`
}

// UploadDraft remembers the last file name picked for upload.
type UploadDraft struct {
	Filename string `json:"filename"`
}

func emptyCustomerDraft() CustomerDraft { return CustomerDraft{} }

func emptyServiceDraft() ServiceDraft {
	return ServiceDraft{Type: string(api.ServiceTypeLogistics)}
}

func emptyBookingDraft() BookingDraft { return BookingDraft{Quantity: "1"} }

// State is the complete, serializable view state of one dashboard session.
type State struct {
	Tab Tab `json:"tab"`

	Customers []api.Customer         `json:"customers"`
	Services  []api.Service          `json:"services"`
	Bookings  []api.Booking          `json:"bookings"`
	Analytics *api.AnalyticsOverview `json:"analytics,omitempty"`

	Performance       []api.DeliveryPerformanceRecord `json:"performance"`
	PerformanceLoaded bool                            `json:"performance_loaded"`

	CustomerDraft CustomerDraft `json:"customer_draft"`
	ServiceDraft  ServiceDraft  `json:"service_draft"`
	BookingDraft  BookingDraft  `json:"booking_draft"`
	UploadDraft   UploadDraft   `json:"upload_draft"`

	UploadResult *api.UploadResult `json:"upload_result,omitempty"`

	Busy    bool `json:"busy"`
	Pending Kind `json:"pending,omitempty"`

	Revision       int               `json:"revision"`
	BookingsFilter api.BookingStatus `json:"bookings_filter,omitempty"`
}

// NewState returns the state of a session that has not loaded anything yet.
func NewState() State {
	return State{
		Tab:          TabOverview,
		Customers:    []api.Customer{},
		Services:     []api.Service{},
		Bookings:     []api.Booking{},
		Performance:  []api.DeliveryPerformanceRecord{},
		ServiceDraft: emptyServiceDraft(),
		BookingDraft: emptyBookingDraft(),
	}
}

// Loaded reports whether at least one full load has completed.
func (s State) Loaded() bool {
	return s.Revision > 0
}

// FilteredBookings applies the bookings status filter to the cache.
func (s State) FilteredBookings() []api.Booking {
	if s.BookingsFilter == "" {
		return s.Bookings
	}
	out := make([]api.Booking, 0, len(s.Bookings))
	for _, b := range s.Bookings {
		if b.Status == s.BookingsFilter {
			out = append(out, b)
		}
	}
	return out
}

// FindBooking looks up a cached booking by id.
func (s State) FindBooking(id string) (api.Booking, bool) {
	for _, b := range s.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return api.Booking{}, false
}
