package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
)

var (
	// ErrBusy is reported when a write is submitted while another is in flight.
	ErrBusy = errors.New("dashboard: write already in progress")
	// ErrNoFile is reported when an upload is submitted without a file.
	ErrNoFile = errors.New("dashboard: no file selected")
)

var sentinelNotices = map[error]string{
	ErrBusy:   "Another request is still in progress",
	ErrNoFile: "Please select a file",
}

// API is the subset of the booking service the dashboard depends on.
type API interface {
	ListCustomers(ctx context.Context) ([]api.Customer, error)
	ListServices(ctx context.Context) ([]api.Service, error)
	ListBookings(ctx context.Context) ([]api.Booking, error)
	AnalyticsOverview(ctx context.Context) (api.AnalyticsOverview, error)
	DeliveryPerformance(ctx context.Context) ([]api.DeliveryPerformanceRecord, error)
	CreateCustomer(ctx context.Context, in api.CustomerCreate) (api.Customer, error)
	CreateService(ctx context.Context, in api.ServiceCreate) (api.Service, error)
	CreateBooking(ctx context.Context, in api.BookingCreate) (api.Booking, error)
	UpdateBooking(ctx context.Context, id string, in api.BookingUpdate) (api.Booking, error)
	UploadBookings(ctx context.Context, filename string, content io.Reader) (api.UploadResult, error)
}

// Recorder receives dashboard level measurements.
type Recorder interface {
	ObserveMutation(kind, outcome string)
	ObserveResync()
	ObserveLoadFailure(source string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, string) {}
func (nopRecorder) ObserveResync()                 {}
func (nopRecorder) ObserveLoadFailure(string)      {}

// Notice is a one-time message for the user about the outcome of an operation.
type Notice struct {
	Kind    string
	Message string
}

func successNotice(msg string) Notice { return Notice{Kind: "success", Message: msg} }

func errorNotice(msg string) Notice { return Notice{Kind: "error", Message: msg} }

// writeVerbs holds the wording of failure notices per write kind.
var writeVerbs = map[Kind]string{
	KindCreateCustomer: "creating customer",
	KindCreateService:  "creating service",
	KindCreateBooking:  "creating booking",
	KindUpdateStatus:   "updating booking",
	KindUpload:         "uploading file",
}

// Service coordinates session state, the booking service and the refresh protocol.
type Service struct {
	api     API
	store   Store
	logger  *slog.Logger
	metrics Recorder
	now     func() time.Time
}

// NewService wires the booking API with a state store. A nil recorder disables
// dashboard metrics.
func NewService(client API, store Store, logger *slog.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		api:     client,
		store:   store,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// Apply loads the session state, performing the initial load for a new session,
// applies the actions and persists the result.
func (s *Service) Apply(ctx context.Context, sessionID string, actions ...Action) (State, error) {
	state, err := s.current(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	for _, a := range actions {
		state = Reduce(state, a)
	}
	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Refresh runs a full load regardless of what the session already holds.
func (s *Service) Refresh(ctx context.Context, sessionID string) (State, error) {
	state, found, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if !found {
		state = NewState()
	}
	state = s.load(ctx, state)
	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return State{}, err
	}
	return state, nil
}

// LoadPerformance fetches the delivery-performance records into the session. Failures
// are logged and leave the cache unchanged.
func (s *Service) LoadPerformance(ctx context.Context, sessionID string) (State, error) {
	state, err := s.current(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	records, err := s.api.DeliveryPerformance(ctx)
	if err != nil {
		s.metrics.ObserveLoadFailure("delivery_performance")
		s.logger.WarnContext(ctx, "load delivery performance", slog.Any("error", err))
	} else {
		state = Reduce(state, PerformanceLoaded{Records: records})
	}
	state = Reduce(state, TabSelected{Tab: TabAnalytics})
	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return State{}, err
	}
	return state, nil
}

// CreateCustomer submits the customer form.
func (s *Service) CreateCustomer(ctx context.Context, sessionID string, draft CustomerDraft) (Notice, error) {
	return s.mutate(ctx, sessionID, KindCreateCustomer, CustomerDraftEdited{Draft: draft}, "Customer created successfully!",
		func(ctx context.Context, _ State) (*api.UploadResult, error) {
			payload, err := draft.CustomerPayload()
			if err != nil {
				return nil, err
			}
			_, err = s.api.CreateCustomer(ctx, payload)
			return nil, err
		})
}

// CreateService submits the service form.
func (s *Service) CreateService(ctx context.Context, sessionID string, draft ServiceDraft) (Notice, error) {
	return s.mutate(ctx, sessionID, KindCreateService, ServiceDraftEdited{Draft: draft}, "Service created successfully!",
		func(ctx context.Context, _ State) (*api.UploadResult, error) {
			payload, err := draft.ServicePayload()
			if err != nil {
				return nil, err
			}
			_, err = s.api.CreateService(ctx, payload)
			return nil, err
		})
}

// CreateBooking submits the booking form.
func (s *Service) CreateBooking(ctx context.Context, sessionID string, draft BookingDraft) (Notice, error) {
	return s.mutate(ctx, sessionID, KindCreateBooking, BookingDraftEdited{Draft: draft}, "Booking created successfully!",
		func(ctx context.Context, _ State) (*api.UploadResult, error) {
			payload, err := draft.BookingPayload()
			if err != nil {
				return nil, err
			}
			_, err = s.api.CreateBooking(ctx, payload)
			return nil, err
		})
}

// UpdateBookingStatus moves a booking to a new status. Moving to delivered stamps the
// actual delivery date with the current time.
func (s *Service) UpdateBookingStatus(ctx context.Context, sessionID, bookingID string, status api.BookingStatus) (Notice, error) {
	return s.mutate(ctx, sessionID, KindUpdateStatus, nil, "Booking status updated!",
		func(ctx context.Context, state State) (*api.UploadResult, error) {
			if bookingID == "" {
				return nil, fmt.Errorf("%w: booking id is required", ErrInvalidDraft)
			}
			if current, ok := state.FindBooking(bookingID); ok {
				if err := CheckTransition(current.Status, status); err != nil {
					return nil, err
				}
			}
			update := api.BookingUpdate{Status: status}
			if status == api.StatusDelivered {
				delivered := s.now().UTC()
				update.ActualDeliveryDate = &delivered
			}
			_, err := s.api.UpdateBooking(ctx, bookingID, update)
			return nil, err
		})
}

// Upload forwards a bulk booking file. A nil content reader means no file was picked.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, content io.Reader) (Notice, error) {
	if content == nil {
		return errorNotice(sentinelNotices[ErrNoFile]), nil
	}
	return s.mutate(ctx, sessionID, KindUpload, UploadDraftEdited{Draft: UploadDraft{Filename: filename}}, "File processed successfully!",
		func(ctx context.Context, _ State) (*api.UploadResult, error) {
			result, err := s.api.UploadBookings(ctx, filename, content)
			if err != nil {
				return nil, err
			}
			if result.Filename == "" {
				result.Filename = filename
			}
			return &result, nil
		})
}

type writeFunc func(ctx context.Context, state State) (*api.UploadResult, error)

func (s *Service) mutate(ctx context.Context, sessionID string, kind Kind, edit Action, success string, write writeFunc) (Notice, error) {
	state, err := s.current(ctx, sessionID)
	if err != nil {
		return Notice{}, err
	}
	if edit != nil {
		state = Reduce(state, edit)
	}

	token, ok, err := s.store.AcquireBusy(ctx, sessionID)
	if err != nil {
		return Notice{}, err
	}
	if !ok {
		s.metrics.ObserveMutation(string(kind), "busy")
		if err := s.store.Save(ctx, sessionID, state); err != nil {
			return Notice{}, err
		}
		return errorNotice(sentinelNotices[ErrBusy]), nil
	}
	defer func() {
		if err := s.store.ReleaseBusy(context.WithoutCancel(ctx), sessionID, token); err != nil {
			s.logger.ErrorContext(ctx, "release busy flag", slog.Any("error", err))
		}
	}()

	state = Reduce(state, WriteRequested{Kind: kind})
	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return Notice{}, err
	}

	upload, writeErr := write(ctx, state)
	var notice Notice
	if writeErr != nil {
		s.metrics.ObserveMutation(string(kind), "error")
		s.logger.WarnContext(ctx, "dashboard write failed", slog.String("kind", string(kind)), slog.Any("error", writeErr))
		state = Reduce(state, WriteFailed{Kind: kind})
		notice = errorNotice(fmt.Sprintf("Error %s: %s", writeVerbs[kind], failureDetail(writeErr)))
	} else {
		s.metrics.ObserveMutation(string(kind), "ok")
		state = Reduce(state, WriteSucceeded{Kind: kind, Upload: upload})
		state = s.resync(ctx, state)
		notice = successNotice(success)
	}

	if err := s.store.Save(context.WithoutCancel(ctx), sessionID, state); err != nil {
		return Notice{}, err
	}
	return notice, nil
}

// resync re-reads every collection after a successful write.
func (s *Service) resync(ctx context.Context, state State) State {
	s.metrics.ObserveResync()
	return s.load(ctx, state)
}

func (s *Service) current(ctx context.Context, sessionID string) (State, error) {
	state, found, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	if found {
		return state, nil
	}
	return s.load(ctx, NewState()), nil
}

// load applies one all-or-nothing round of the four collection reads.
func (s *Service) load(ctx context.Context, state State) State {
	loaded, err := s.fetchAll(ctx)
	if err != nil {
		s.metrics.ObserveLoadFailure("initial_load")
		s.logger.WarnContext(ctx, "load dashboard", slog.Any("error", err))
		return state
	}
	return Reduce(state, loaded)
}

func (s *Service) fetchAll(ctx context.Context) (LoadSucceeded, error) {
	var out LoadSucceeded
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		customers, err := s.api.ListCustomers(gctx)
		if err != nil {
			return fmt.Errorf("customers: %w", err)
		}
		out.Customers = customers
		return nil
	})
	g.Go(func() error {
		services, err := s.api.ListServices(gctx)
		if err != nil {
			return fmt.Errorf("services: %w", err)
		}
		out.Services = services
		return nil
	})
	g.Go(func() error {
		bookings, err := s.api.ListBookings(gctx)
		if err != nil {
			return fmt.Errorf("bookings: %w", err)
		}
		out.Bookings = bookings
		return nil
	})
	g.Go(func() error {
		overview, err := s.api.AnalyticsOverview(gctx)
		if err != nil {
			return fmt.Errorf("analytics overview: %w", err)
		}
		out.Analytics = overview
		return nil
	})
	if err := g.Wait(); err != nil {
		return LoadSucceeded{}, err
	}
	return out, nil
}

func failureDetail(err error) string {
	switch {
	case errors.Is(err, ErrInvalidDraft), errors.Is(err, ErrIllegalTransition):
		return err.Error()
	default:
		return api.Detail(err)
	}
}
