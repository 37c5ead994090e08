package dashboardhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
	"github.com/odyssey-erp/scm-dashboard/internal/dashboard"
	"github.com/odyssey-erp/scm-dashboard/internal/shared"
	"github.com/odyssey-erp/scm-dashboard/internal/view"
)

// bookingBackend is an in-memory stand-in for the booking service.
type bookingBackend struct {
	mu        sync.Mutex
	customers []map[string]any
	services  []map[string]any
	bookings  []map[string]any
	updates   []map[string]any
	uploads   []string
	down      bool
}

func newBookingBackend() *bookingBackend {
	return &bookingBackend{
		customers: []map[string]any{{"id": "c1", "name": "Acme", "email": "ops@acme.test", "created_at": "2025-03-01T10:00:00"}},
		services: []map[string]any{{"id": "s1", "name": "Freight", "type": "logistics", "base_price": 12.5,
			"estimated_delivery_days": 3, "created_at": "2025-03-01T10:00:00"}},
		bookings: []map[string]any{
			{"id": "b-pending", "customer_id": "c1", "service_id": "s1", "quantity": 2, "total_price": 25.0, "status": "pending",
				"estimated_delivery_date": "2025-03-04T10:00:00", "created_at": "2025-03-01T10:00:00"},
			{"id": "b-delivered", "customer_id": "c1", "service_id": "s1", "quantity": 1, "total_price": 12.5, "status": "delivered",
				"estimated_delivery_date": "2025-03-04T10:00:00", "actual_delivery_date": "2025-03-03T10:00:00", "created_at": "2025-03-01T10:00:00"},
		},
	}
}

func (b *bookingBackend) routes() http.Handler {
	r := chi.NewRouter()
	list := func(get func() []map[string]any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.down {
				http.Error(w, "down", http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(get())
		}
	}
	r.Get("/api/customers", list(func() []map[string]any { return b.customers }))
	r.Get("/api/services", list(func() []map[string]any { return b.services }))
	r.Get("/api/bookings", list(func() []map[string]any { return b.bookings }))
	r.Get("/api/analytics/overview", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total_customers": len(b.customers), "total_services": len(b.services), "total_bookings": len(b.bookings),
			"on_time_delivery_rate": 100.0, "status_counts": map[string]int{"pending": 1, "delivered": 1},
		})
	})
	r.Get("/api/analytics/delivery-performance", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"booking_id":"b-delivered","estimated_days":3,"actual_days":2,"variance_days":-1,"on_time":true}]`)
	})
	r.Post("/api/customers", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		defer b.mu.Unlock()
		in["id"] = "c2"
		in["created_at"] = "2025-03-05T10:00:00"
		b.customers = append(b.customers, in)
		_ = json.NewEncoder(w).Encode(in)
	})
	r.Put("/api/bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.updates = append(b.updates, in)
		for _, bk := range b.bookings {
			if bk["id"] == chi.URLParam(r, "id") {
				bk["status"] = in["status"]
				_ = json.NewEncoder(w).Encode(bk)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Booking not found"}`)
	})
	r.Post("/api/upload/bookings", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		b.mu.Lock()
		b.uploads = append(b.uploads, header.Filename+":"+string(data))
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"filename":"`+header.Filename+`","records_processed":2,"successful_imports":1,"failed_imports":1,"errors":["Row 3: Service 'Ghost' not found"]}`)
	})
	return r
}

type stubPDF struct {
	html []byte
	err  error
}

func (s *stubPDF) RenderHTML(ctx context.Context, html []byte) ([]byte, error) {
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.7 overview"), nil
}

type harness struct {
	router  http.Handler
	backend *bookingBackend
	session *shared.Session
	pdf     *stubPDF
	redis   *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := newBookingBackend()
	srv := httptest.NewServer(backend.routes())
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(srv.URL+"/api", 5*time.Second)
	service := dashboard.NewService(client, dashboard.NewRedisStore(rdb, time.Hour, time.Minute), logger, nil)

	templates, err := view.NewEngine()
	require.NoError(t, err)

	h := &harness{backend: backend, session: &shared.Session{ID: "sess-1"}, pdf: &stubPDF{}, redis: mr}
	handler := NewHandler(logger, service, templates, shared.NewCSRFManager("secret"), h.pdf, language.AmericanEnglish)
	handler.WithNow(func() time.Time { return time.Date(2025, 5, 1, 12, 30, 0, 0, time.UTC) })

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), h.session)))
		})
	})
	handler.MountRoutes(r)
	h.router = r
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (h *harness) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *harness) popFlash(t *testing.T) shared.FlashMessage {
	t.Helper()
	flash := h.session.PopFlash()
	require.NotNil(t, flash, "expected a flash message")
	return *flash
}

func TestDashboardRendersLoadedBookings(t *testing.T) {
	h := newHarness(t)
	rr := h.get("/dashboard?tab=bookings")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `action="/dashboard/bookings/b-pending/status"`)
	assert.NotContains(t, body, `action="/dashboard/bookings/b-delivered/status"`)
	assert.Contains(t, body, "$25.00")
	assert.NotEmpty(t, h.session.Get(shared.CSRFSessionKey))
}

func TestDashboardStatusFilter(t *testing.T) {
	h := newHarness(t)
	rr := h.get("/dashboard?tab=bookings&status=delivered")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "b-pending")

	rr = h.get("/dashboard/state.json")
	require.Equal(t, http.StatusOK, rr.Code)
	var state dashboard.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	assert.Equal(t, api.StatusDelivered, state.BookingsFilter)
	assert.Equal(t, dashboard.TabBookings, state.Tab)
}

func TestCreateCustomerRedirectsWithFlash(t *testing.T) {
	h := newHarness(t)
	rr := h.postForm("/dashboard/customers", url.Values{"name": {"Globex"}, "email": {"hq@globex.test"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard?tab=customers", rr.Header().Get("Location"))

	flash := h.popFlash(t)
	assert.Equal(t, "success", flash.Kind)
	assert.Equal(t, "Customer created successfully!", flash.Message)

	rr = h.get("/dashboard?tab=customers")
	assert.Contains(t, rr.Body.String(), "hq@globex.test")
}

func TestCreateCustomerRejectsIncompleteForm(t *testing.T) {
	h := newHarness(t)
	rr := h.postForm("/dashboard/customers", url.Values{"name": {"Globex"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	flash := h.popFlash(t)
	assert.Equal(t, "error", flash.Kind)
	assert.True(t, strings.HasPrefix(flash.Message, "Error creating customer: "))
	assert.Contains(t, flash.Message, "email is required")

	rr = h.get("/dashboard?tab=customers")
	assert.Contains(t, rr.Body.String(), `value="Globex"`)
}

func TestUpdateStatusConfirmsBooking(t *testing.T) {
	h := newHarness(t)
	h.get("/dashboard")
	rr := h.postForm("/dashboard/bookings/b-pending/status", url.Values{"status": {"confirmed"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "Booking status updated!", h.popFlash(t).Message)

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	require.Len(t, h.backend.updates, 1)
	assert.Equal(t, "confirmed", h.backend.updates[0]["status"])
	_, hasDate := h.backend.updates[0]["actual_delivery_date"]
	assert.False(t, hasDate)
}

func TestUpdateStatusRejectsTerminalBooking(t *testing.T) {
	h := newHarness(t)
	h.get("/dashboard")
	rr := h.postForm("/dashboard/bookings/b-delivered/status", url.Values{"status": {"pending"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	flash := h.popFlash(t)
	assert.Equal(t, "error", flash.Kind)
	assert.True(t, strings.HasPrefix(flash.Message, "Error updating booking: "))

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.Empty(t, h.backend.updates)
}

func TestUploadForwardsFile(t *testing.T) {
	h := newHarness(t)
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "bookings.csv")
	require.NoError(t, err)
	_, _ = io.WriteString(part, "customer_name,customer_email,service_name\nAcme,ops@acme.test,Freight\n")
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/dashboard/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := h.do(req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard?tab=upload", rr.Header().Get("Location"))
	assert.Equal(t, "File processed successfully!", h.popFlash(t).Message)

	h.backend.mu.Lock()
	require.Len(t, h.backend.uploads, 1)
	assert.True(t, strings.HasPrefix(h.backend.uploads[0], "bookings.csv:customer_name"))
	h.backend.mu.Unlock()

	page := h.get("/dashboard?tab=upload").Body.String()
	assert.Contains(t, page, "Upload Results")
	assert.Contains(t, page, "Service &#39;Ghost&#39; not found")
}

func TestUploadWithoutFile(t *testing.T) {
	h := newHarness(t)
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("csrf_token", "x"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/dashboard/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := h.do(req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	flash := h.popFlash(t)
	assert.Equal(t, "error", flash.Kind)
	assert.Equal(t, "Please select a file", flash.Message)
}

func TestRefreshWithBackendDownKeepsCachedState(t *testing.T) {
	h := newHarness(t)
	rr := h.get("/dashboard/state.json")
	require.Equal(t, http.StatusOK, rr.Code)
	var before dashboard.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &before))
	require.True(t, before.Loaded())

	h.backend.mu.Lock()
	h.backend.down = true
	h.backend.mu.Unlock()

	rr = h.postForm("/dashboard/refresh", url.Values{})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Nil(t, h.session.PopFlash())

	rr = h.get("/dashboard/state.json")
	require.Equal(t, http.StatusOK, rr.Code)
	var after dashboard.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &after))
	assert.Equal(t, before.Revision, after.Revision)
	assert.Equal(t, before.Bookings, after.Bookings)
	assert.Equal(t, before.Customers, after.Customers)
}

func TestRefreshBeforeFirstLoadStaysSilent(t *testing.T) {
	h := newHarness(t)
	h.backend.mu.Lock()
	h.backend.down = true
	h.backend.mu.Unlock()

	rr := h.postForm("/dashboard/refresh", url.Values{})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Nil(t, h.session.PopFlash())

	page := h.get("/dashboard").Body.String()
	assert.Contains(t, page, "Dashboard data is not loaded yet")
}

func TestLoadPerformanceSwitchesToAnalytics(t *testing.T) {
	h := newHarness(t)
	rr := h.postForm("/dashboard/analytics/performance", url.Values{})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard?tab=analytics", rr.Header().Get("Location"))

	page := h.get("/dashboard").Body.String()
	assert.Contains(t, page, "Delivery Performance")
	assert.Contains(t, page, "Avg. Variance")
}

func TestExports(t *testing.T) {
	h := newHarness(t)

	rr := h.get("/dashboard/export/bookings.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "bookings-20250501-1230.csv")
	assert.Contains(t, rr.Body.String(), "b-pending")

	rr = h.get("/dashboard/export/bookings.xlsx")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr = h.get("/dashboard/upload/template.xlsx")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "booking_upload_template.xlsx")

	rr = h.get("/dashboard/export/overview.pdf")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, string(h.pdf.html), "Freight")
}

func TestOverviewPDFUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.pdf.err = errors.New("chromium crashed")
	rr := h.get("/dashboard/export/overview.pdf")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestRequestWithoutSessionFails(t *testing.T) {
	h := newHarness(t)
	h.session = nil
	rr := h.get("/dashboard")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
