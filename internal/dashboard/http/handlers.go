// Package dashboardhttp serves the dashboard pages, forms and exports.
package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
	"github.com/odyssey-erp/scm-dashboard/internal/dashboard"
	"github.com/odyssey-erp/scm-dashboard/internal/dashboard/export"
	"github.com/odyssey-erp/scm-dashboard/internal/platform/httpx"
	"github.com/odyssey-erp/scm-dashboard/internal/shared"
	"github.com/odyssey-erp/scm-dashboard/internal/view"
	"github.com/odyssey-erp/scm-dashboard/report"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfTimeout      = 20 * time.Second
)

var errNoSession = errors.New("dashboard: request has no session")

// Service is the dashboard behaviour the handler drives.
type Service interface {
	Apply(ctx context.Context, sessionID string, actions ...dashboard.Action) (dashboard.State, error)
	Refresh(ctx context.Context, sessionID string) (dashboard.State, error)
	LoadPerformance(ctx context.Context, sessionID string) (dashboard.State, error)
	CreateCustomer(ctx context.Context, sessionID string, draft dashboard.CustomerDraft) (dashboard.Notice, error)
	CreateService(ctx context.Context, sessionID string, draft dashboard.ServiceDraft) (dashboard.Notice, error)
	CreateBooking(ctx context.Context, sessionID string, draft dashboard.BookingDraft) (dashboard.Notice, error)
	UpdateBookingStatus(ctx context.Context, sessionID, bookingID string, status api.BookingStatus) (dashboard.Notice, error)
	Upload(ctx context.Context, sessionID, filename string, content io.Reader) (dashboard.Notice, error)
}

// Handler coordinates HTTP requests for the dashboard.
type Handler struct {
	logger    *slog.Logger
	service   Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	pdf       export.Renderer
	locale    language.Tag
	now       func() time.Time
}

// NewHandler constructs the dashboard HTTP handler. A nil pdf renderer disables the
// overview PDF export.
func NewHandler(logger *slog.Logger, service Service, templates *view.Engine, csrf *shared.CSRFManager, pdf export.Renderer, locale language.Tag) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		pdf:       pdf,
		locale:    locale,
		now:       time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.handleServerError(w, "load session", errNoSession)
		return
	}

	query := r.URL.Query()
	var actions []dashboard.Action
	if query.Has("tab") {
		actions = append(actions, dashboard.TabSelected{Tab: dashboard.ParseTab(query.Get("tab"))})
	}
	if query.Has("status") {
		actions = append(actions, dashboard.BookingsFilterChanged{Status: api.BookingStatus(strings.TrimSpace(query.Get("status")))})
	}
	state, err := h.service.Apply(r.Context(), sess.ID, actions...)
	if err != nil {
		h.handleServerError(w, "load dashboard", err)
		return
	}

	csrfToken, err := h.csrf.EnsureToken(sess)
	if err != nil {
		h.handleServerError(w, "issue csrf token", err)
		return
	}
	data := view.TemplateData{
		Title:       "Supply Chain Dashboard",
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        dashboard.BuildView(state, h.requestLocale(r)),
	}
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.handleServerError(w, "render template", err)
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.handleServerError(w, "load session", errNoSession)
		return
	}
	state, err := h.service.Refresh(r.Context(), sess.ID)
	if err != nil {
		h.handleServerError(w, "refresh dashboard", err)
		return
	}
	redirectToTab(w, r, state.Tab)
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	draft := dashboard.CustomerDraft{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Phone:   r.PostFormValue("phone"),
		Address: r.PostFormValue("address"),
	}
	h.write(w, r, dashboard.TabCustomers, func(ctx context.Context, sid string) (dashboard.Notice, error) {
		return h.service.CreateCustomer(ctx, sid, draft)
	})
}

func (h *Handler) handleCreateService(w http.ResponseWriter, r *http.Request) {
	draft := dashboard.ServiceDraft{
		Name:                  r.PostFormValue("name"),
		Type:                  r.PostFormValue("type"),
		Description:           r.PostFormValue("description"),
		BasePrice:             r.PostFormValue("base_price"),
		EstimatedDeliveryDays: r.PostFormValue("estimated_delivery_days"),
	}
	h.write(w, r, dashboard.TabServices, func(ctx context.Context, sid string) (dashboard.Notice, error) {
		return h.service.CreateService(ctx, sid, draft)
	})
}

func (h *Handler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	draft := dashboard.BookingDraft{
		CustomerID: r.PostFormValue("customer_id"),
		ServiceID:  r.PostFormValue("service_id"),
		Quantity:   r.PostFormValue("quantity"),
		Notes:      r.PostFormValue("notes"),
	}
	h.write(w, r, dashboard.TabBookings, func(ctx context.Context, sid string) (dashboard.Notice, error) {
		return h.service.CreateBooking(ctx, sid, draft)
	})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	status := api.BookingStatus(r.PostFormValue("status"))
	h.write(w, r, dashboard.TabBookings, func(ctx context.Context, sid string) (dashboard.Notice, error) {
		return h.service.UpdateBookingStatus(ctx, sid, bookingID, status)
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		h.write(w, r, dashboard.TabUpload, func(ctx context.Context, sid string) (dashboard.Notice, error) {
			return h.service.Upload(ctx, sid, "", nil)
		})
		return
	case err != nil:
		h.logger.WarnContext(r.Context(), "read upload", slog.Any("error", err))
		h.flashAndRedirect(w, r, dashboard.TabUpload, dashboard.Notice{Kind: "error", Message: "Error uploading file: " + uploadReadDetail(err)})
		return
	}
	defer func() { _ = file.Close() }()

	h.write(w, r, dashboard.TabUpload, func(ctx context.Context, sid string) (dashboard.Notice, error) {
		return h.service.Upload(ctx, sid, header.Filename, file)
	})
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.handleServerError(w, "load session", errNoSession)
		return
	}
	if _, err := h.service.LoadPerformance(r.Context(), sess.ID); err != nil {
		h.handleServerError(w, "load delivery performance", err)
		return
	}
	redirectToTab(w, r, dashboard.TabAnalytics)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	state, ok := h.currentState(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, state)
}

func (h *Handler) handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteUploadTemplate(&buf); err != nil {
		h.handleServerError(w, "write upload template", err)
		return
	}
	httpx.Attachment(w, "booking_upload_template.xlsx", xlsxContentType, buf.Bytes())
}

func (h *Handler) handleBookingsCSV(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteBookingsCSV(&buf, v.Bookings); err != nil {
		h.handleServerError(w, "write bookings csv", err)
		return
	}
	httpx.Attachment(w, h.exportName("bookings", "csv"), "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) handleBookingsXLSX(w http.ResponseWriter, r *http.Request) {
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteBookingsXLSX(&buf, v.Bookings); err != nil {
		h.handleServerError(w, "write bookings xlsx", err)
		return
	}
	httpx.Attachment(w, h.exportName("bookings", "xlsx"), xlsxContentType, buf.Bytes())
}

func (h *Handler) handleOverviewPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.RespondError(w, fmt.Errorf("pdf export: %w", httpx.ErrUnavailable))
		return
	}
	v, ok := h.currentView(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), pdfTimeout)
	defer cancel()

	pdf, err := export.RenderOverviewPDF(ctx, h.pdf, export.OverviewPayload{GeneratedAt: h.now(), View: v})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render overview pdf", slog.Any("error", err))
		if errors.Is(err, report.ErrNotConfigured) {
			httpx.RespondError(w, fmt.Errorf("pdf export: %w", httpx.ErrUnavailable))
			return
		}
		httpx.RespondError(w, fmt.Errorf("pdf export: %w", httpx.ErrUpstream))
		return
	}
	httpx.Attachment(w, h.exportName("overview", "pdf"), "application/pdf", pdf)
}

type writeCall func(ctx context.Context, sessionID string) (dashboard.Notice, error)

// write runs one mutation and redirects back to the tab with its notice as a flash.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, tab dashboard.Tab, call writeCall) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.handleServerError(w, "load session", errNoSession)
		return
	}
	notice, err := call(r.Context(), sess.ID)
	if err != nil {
		h.handleServerError(w, "dashboard write", err)
		return
	}
	h.flashAndRedirect(w, r, tab, notice)
}

func (h *Handler) flashAndRedirect(w http.ResponseWriter, r *http.Request, tab dashboard.Tab, notice dashboard.Notice) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && notice.Message != "" {
		sess.AddFlash(shared.FlashMessage{Kind: notice.Kind, Message: notice.Message})
	}
	redirectToTab(w, r, tab)
}

func (h *Handler) currentState(w http.ResponseWriter, r *http.Request) (dashboard.State, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.handleServerError(w, "load session", errNoSession)
		return dashboard.State{}, false
	}
	state, err := h.service.Apply(r.Context(), sess.ID)
	if err != nil {
		h.handleServerError(w, "load dashboard", err)
		return dashboard.State{}, false
	}
	return state, true
}

func (h *Handler) currentView(w http.ResponseWriter, r *http.Request) (dashboard.View, bool) {
	state, ok := h.currentState(w, r)
	if !ok {
		return dashboard.View{}, false
	}
	return dashboard.BuildView(state, h.requestLocale(r)), true
}

func (h *Handler) requestLocale(r *http.Request) language.Tag {
	return dashboard.MatchLocale(r.Header.Get("Accept-Language"), h.locale)
}

func (h *Handler) exportName(base, ext string) string {
	return fmt.Sprintf("%s-%s.%s", base, h.now().Format("20060102-1504"), ext)
}

func (h *Handler) handleServerError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func redirectToTab(w http.ResponseWriter, r *http.Request, tab dashboard.Tab) {
	http.Redirect(w, r, "/dashboard?tab="+url.QueryEscape(string(tab)), http.StatusSeeOther)
}

func uploadReadDetail(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Sprintf("file exceeds the %d byte limit", tooLarge.Limit)
	}
	return "could not read the uploaded file"
}
