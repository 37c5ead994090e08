package dashboard

import "github.com/odyssey-erp/scm-dashboard/internal/api"

// Action is an event applied to State by Reduce.
type Action interface {
	action()
}

// TabSelected switches the visible tab.
type TabSelected struct{ Tab Tab }

// BookingsFilterChanged sets or clears the bookings status filter.
type BookingsFilterChanged struct{ Status api.BookingStatus }

// CustomerDraftEdited records the customer form as submitted.
type CustomerDraftEdited struct{ Draft CustomerDraft }

// ServiceDraftEdited records the service form as submitted.
type ServiceDraftEdited struct{ Draft ServiceDraft }

// BookingDraftEdited records the booking form as submitted.
type BookingDraftEdited struct{ Draft BookingDraft }

// UploadDraftEdited records the picked upload file name.
type UploadDraftEdited struct{ Draft UploadDraft }

// LoadSucceeded carries one complete round of the four collection reads.
type LoadSucceeded struct {
	Customers []api.Customer
	Services  []api.Service
	Bookings  []api.Booking
	Analytics api.AnalyticsOverview
}

// PerformanceLoaded carries the delivery-performance records.
type PerformanceLoaded struct {
	Records []api.DeliveryPerformanceRecord
}

// WriteRequested marks a write of the given kind as in flight.
type WriteRequested struct{ Kind Kind }

// WriteSucceeded completes a write. Upload is set for bulk uploads only.
type WriteSucceeded struct {
	Kind   Kind
	Upload *api.UploadResult
}

// WriteFailed completes a write that the service or the local checks rejected.
type WriteFailed struct{ Kind Kind }

func (TabSelected) action()           {}
func (BookingsFilterChanged) action() {}
func (CustomerDraftEdited) action()   {}
func (ServiceDraftEdited) action()    {}
func (BookingDraftEdited) action()    {}
func (UploadDraftEdited) action()     {}
func (LoadSucceeded) action()         {}
func (PerformanceLoaded) action()     {}
func (WriteRequested) action()        {}
func (WriteSucceeded) action()        {}
func (WriteFailed) action()           {}

// Reduce returns the state that results from applying a to s. It never mutates the
// slices held by s or a.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case TabSelected:
		s.Tab = ParseTab(string(act.Tab))
	case BookingsFilterChanged:
		s.BookingsFilter = act.Status
	case CustomerDraftEdited:
		s.CustomerDraft = act.Draft
	case ServiceDraftEdited:
		s.ServiceDraft = act.Draft
	case BookingDraftEdited:
		s.BookingDraft = act.Draft
	case UploadDraftEdited:
		s.UploadDraft = act.Draft
	case LoadSucceeded:
		s.Customers = cloneOrEmpty(act.Customers)
		s.Services = cloneOrEmpty(act.Services)
		s.Bookings = cloneOrEmpty(act.Bookings)
		overview := act.Analytics
		overview.StatusCounts = cloneCounts(act.Analytics.StatusCounts)
		s.Analytics = &overview
		s.Revision++
	case PerformanceLoaded:
		s.Performance = cloneOrEmpty(act.Records)
		s.PerformanceLoaded = true
	case WriteRequested:
		s.Busy = true
		s.Pending = act.Kind
	case WriteSucceeded:
		switch act.Kind {
		case KindCreateCustomer:
			s.CustomerDraft = emptyCustomerDraft()
		case KindCreateService:
			s.ServiceDraft = emptyServiceDraft()
		case KindCreateBooking:
			s.BookingDraft = emptyBookingDraft()
		case KindUpload:
			s.UploadDraft = UploadDraft{}
			if act.Upload != nil {
				result := *act.Upload
				result.Errors = cloneOrEmpty(act.Upload.Errors)
				s.UploadResult = &result
			}
		}
		s.Busy = false
		s.Pending = KindNone
	case WriteFailed:
		s.Busy = false
		s.Pending = KindNone
	}
	return s
}

func cloneOrEmpty[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
