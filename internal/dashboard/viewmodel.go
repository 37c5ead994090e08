package dashboard

import (
	"html/template"
	"sort"
	"strconv"

	"golang.org/x/text/language"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
	"github.com/odyssey-erp/scm-dashboard/internal/dashboard/svg"
)

// UnknownName replaces references that match nothing in the caches.
const UnknownName = "Unknown"

// UploadColumn documents one column of the bulk upload contract.
type UploadColumn struct {
	Name        string
	Required    bool
	Description string
}

// UploadColumns is the column contract shown on the upload tab and written into the
// downloadable template.
var UploadColumns = []UploadColumn{
	{Name: "customer_name", Required: true, Description: "Full name of the customer"},
	{Name: "customer_email", Required: true, Description: "Customer's email address"},
	{Name: "service_name", Required: true, Description: "Exact name of the service (must exist in system)"},
	{Name: "quantity", Required: false, Description: "Number of services ordered (default: 1)"},
	{Name: "notes", Required: false, Description: "Additional notes for the booking"},
}

// statusOrder fixes the display order of known statuses.
var statusOrder = []api.BookingStatus{
	api.StatusPending, api.StatusConfirmed, api.StatusInProgress, api.StatusDelivered, api.StatusCancelled,
}

var statusChartColors = map[api.BookingStatus]string{
	api.StatusPending:    "#eab308",
	api.StatusConfirmed:  "#3b82f6",
	api.StatusInProgress: "#a855f7",
	api.StatusDelivered:  "#22c55e",
	api.StatusCancelled:  "#ef4444",
}

// TabLink is one entry of the tab bar.
type TabLink struct {
	Tab    Tab
	Label  string
	Active bool
}

// StatusCount is one cell of the status distribution.
type StatusCount struct {
	Status api.BookingStatus
	Label  string
	Color  string
	Count  int
}

// OverviewView backs the overview tab.
type OverviewView struct {
	TotalCustomers     string
	TotalServices      string
	TotalBookings      string
	OnTimeDeliveryRate string
	StatusCounts       []StatusCount
	Chart              template.HTML
}

// CustomerRow is one line of the customers table.
type CustomerRow struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Created string
}

// ServiceRow is one line of the services table.
type ServiceRow struct {
	ID        string
	Name      string
	Type      string
	TypeColor string
	Price     string
	Days      int
	Created   string
}

// StatusOption is one target offered by a booking's status control.
type StatusOption struct {
	Value api.BookingStatus
	Label string
}

// BookingRow is one line of the bookings table. Next is empty for terminal bookings.
type BookingRow struct {
	ID                string
	ShortID           string
	CustomerName      string
	ServiceName       string
	Quantity          int
	Total             string
	Status            api.BookingStatus
	StatusLabel       string
	StatusColor       string
	EstimatedDelivery string
	ActualDelivery    string
	Notes             string
	Next              []StatusOption
}

// Option is a select option.
type Option struct {
	Value string
	Label string
}

// UploadView backs the upload results panel.
type UploadView struct {
	Filename          string
	RecordsProcessed  int
	SuccessfulImports int
	FailedImports     int
	ErrorCount        int
	Errors            []string
}

// PerformanceRow is one line of the delivery performance table.
type PerformanceRow struct {
	ShortID       string
	EstimatedDays int
	ActualDays    int
	Variance      string
	Late          bool
	OnTime        bool
}

// PerformanceView backs the analytics tab.
type PerformanceView struct {
	Loaded     bool
	HasSummary bool
	Summary    PerformanceSummary
	Rows       []PerformanceRow
	Chart      template.HTML
}

// View is everything the dashboard template renders.
type View struct {
	Tab      Tab
	Tabs     []TabLink
	Locale   string
	Busy     bool
	Pending  Kind
	Loaded   bool
	Revision int

	Overview  OverviewView
	Customers []CustomerRow
	Services  []ServiceRow
	Bookings  []BookingRow

	BookingsTotal  int
	BookingsFilter string
	FilterOptions  []StatusOption

	CustomerOptions []Option
	ServiceOptions  []Option
	ServiceTypes    []api.ServiceType

	CustomerDraft CustomerDraft
	ServiceDraft  ServiceDraft
	BookingDraft  BookingDraft
	UploadDraft   UploadDraft

	Upload        *UploadView
	UploadColumns []UploadColumn

	Performance PerformanceView
}

var tabLabels = map[Tab]string{
	TabOverview:  "Overview",
	TabCustomers: "Customers",
	TabServices:  "Services",
	TabBookings:  "Bookings",
	TabUpload:    "Bulk Upload",
	TabAnalytics: "Analytics",
}

// BuildView derives the render model of a state for the given locale.
func BuildView(s State, tag language.Tag) View {
	v := View{
		Tab:            s.Tab,
		Locale:         tag.String(),
		Busy:           s.Busy,
		Pending:        s.Pending,
		Loaded:         s.Loaded(),
		Revision:       s.Revision,
		BookingsTotal:  len(s.Bookings),
		BookingsFilter: string(s.BookingsFilter),
		ServiceTypes:   api.ServiceTypes,
		CustomerDraft:  s.CustomerDraft,
		ServiceDraft:   s.ServiceDraft,
		BookingDraft:   s.BookingDraft,
		UploadDraft:    s.UploadDraft,
		UploadColumns:  UploadColumns,
	}
	for _, tab := range Tabs {
		v.Tabs = append(v.Tabs, TabLink{Tab: tab, Label: tabLabels[tab], Active: tab == s.Tab})
	}
	for _, status := range statusOrder {
		v.FilterOptions = append(v.FilterOptions, StatusOption{Value: status, Label: StatusLabel(status)})
	}

	v.Overview = buildOverview(s.Analytics, tag)

	customerNames := make(map[string]string, len(s.Customers))
	for _, c := range s.Customers {
		customerNames[c.ID] = c.Name
		v.Customers = append(v.Customers, CustomerRow{
			ID:      c.ID,
			Name:    c.Name,
			Email:   c.Email,
			Phone:   deref(c.Phone),
			Created: FormatDate(c.CreatedAt.Time, tag),
		})
		v.CustomerOptions = append(v.CustomerOptions, Option{Value: c.ID, Label: c.Name + " (" + c.Email + ")"})
	}

	serviceNames := make(map[string]string, len(s.Services))
	for _, svc := range s.Services {
		serviceNames[svc.ID] = svc.Name
		v.Services = append(v.Services, ServiceRow{
			ID:        svc.ID,
			Name:      svc.Name,
			Type:      string(svc.Type),
			TypeColor: ServiceTypeColor(svc.Type),
			Price:     FormatMoney(svc.BasePrice, tag),
			Days:      svc.EstimatedDeliveryDays,
			Created:   FormatDate(svc.CreatedAt.Time, tag),
		})
		v.ServiceOptions = append(v.ServiceOptions, Option{Value: svc.ID, Label: svc.Name + " - " + FormatMoney(svc.BasePrice, tag)})
	}

	for _, b := range s.FilteredBookings() {
		v.Bookings = append(v.Bookings, buildBookingRow(b, customerNames, serviceNames, tag))
	}

	if s.UploadResult != nil {
		v.Upload = &UploadView{
			Filename:          s.UploadResult.Filename,
			RecordsProcessed:  s.UploadResult.RecordsProcessed,
			SuccessfulImports: s.UploadResult.SuccessfulImports,
			FailedImports:     s.UploadResult.FailedImports,
			ErrorCount:        len(s.UploadResult.Errors),
			Errors:            s.UploadResult.Errors,
		}
	}

	v.Performance = buildPerformance(s)
	return v
}

func buildOverview(overview *api.AnalyticsOverview, tag language.Tag) OverviewView {
	if overview == nil {
		overview = &api.AnalyticsOverview{}
	}
	out := OverviewView{
		TotalCustomers:     FormatCount(overview.TotalCustomers, tag),
		TotalServices:      FormatCount(overview.TotalServices, tag),
		TotalBookings:      FormatCount(overview.TotalBookings, tag),
		OnTimeDeliveryRate: strconv.FormatFloat(overview.OnTimeDeliveryRate, 'f', -1, 64),
		StatusCounts:       SortedStatusCounts(overview.StatusCounts),
	}
	if len(out.StatusCounts) > 0 {
		bars := make([]svg.Bar, 0, len(out.StatusCounts))
		for _, sc := range out.StatusCounts {
			bars = append(bars, svg.Bar{Label: sc.Label, Value: float64(sc.Count), Color: statusChartColors[sc.Status]})
		}
		chart, err := svg.Bars(0, 0, bars, svg.BarOpts{Title: "Booking Status Distribution", Description: "Bookings per status"})
		if err == nil {
			out.Chart = chart
		}
	}
	return out
}

// SortedStatusCounts orders known statuses by lifecycle, then the rest by name.
func SortedStatusCounts(counts map[string]int) []StatusCount {
	rank := make(map[api.BookingStatus]int, len(statusOrder))
	for i, status := range statusOrder {
		rank[status] = i
	}
	out := make([]StatusCount, 0, len(counts))
	for raw, count := range counts {
		status := api.BookingStatus(raw)
		out = append(out, StatusCount{Status: status, Label: StatusLabel(status), Color: StatusColor(status), Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iKnown := rank[out[i].Status]
		rj, jKnown := rank[out[j].Status]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return out[i].Status < out[j].Status
		}
	})
	return out
}

func buildBookingRow(b api.Booking, customers, services map[string]string, tag language.Tag) BookingRow {
	row := BookingRow{
		ID:                b.ID,
		ShortID:           ShortID(b.ID),
		CustomerName:      lookupName(customers, b.CustomerID),
		ServiceName:       lookupName(services, b.ServiceID),
		Quantity:          b.Quantity,
		Total:             FormatMoney(b.TotalPrice, tag),
		Status:            b.Status,
		StatusLabel:       StatusLabel(b.Status),
		StatusColor:       StatusColor(b.Status),
		EstimatedDelivery: FormatDate(b.EstimatedDeliveryDate.Time, tag),
		Notes:             deref(b.Notes),
	}
	if b.ActualDeliveryDate != nil {
		row.ActualDelivery = FormatDate(b.ActualDeliveryDate.Time, tag)
	}
	for _, next := range NextStatuses(b.Status) {
		row.Next = append(row.Next, StatusOption{Value: next, Label: StatusLabel(next)})
	}
	return row
}

func buildPerformance(s State) PerformanceView {
	out := PerformanceView{Loaded: s.PerformanceLoaded}
	summary, ok := SummarizePerformance(s.Performance)
	if !ok {
		return out
	}
	out.HasSummary = true
	out.Summary = summary
	bars := make([]svg.Bar, 0, len(s.Performance))
	for _, rec := range s.Performance {
		variance := RoundHalfUp(rec.VarianceDays)
		label := strconv.Itoa(variance)
		if rec.VarianceDays > 0 {
			label = "+" + label
		}
		out.Rows = append(out.Rows, PerformanceRow{
			ShortID:       ShortID(rec.BookingID),
			EstimatedDays: RoundHalfUp(rec.EstimatedDays),
			ActualDays:    RoundHalfUp(rec.ActualDays),
			Variance:      label,
			Late:          rec.VarianceDays > 0,
			OnTime:        rec.OnTime,
		})
		color := "#22c55e"
		if rec.VarianceDays > 0 {
			color = "#ef4444"
		}
		bars = append(bars, svg.Bar{Label: ShortID(rec.BookingID), Value: rec.VarianceDays, Color: color})
	}
	chart, err := svg.Bars(0, 0, bars, svg.BarOpts{Title: "Delivery Variance", Description: "Variance in days per delivered booking"})
	if err == nil {
		out.Chart = chart
	}
	return out
}

func lookupName(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return UnknownName
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
