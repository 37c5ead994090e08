package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
	"github.com/odyssey-erp/scm-dashboard/internal/dashboard"
	dashboardhttp "github.com/odyssey-erp/scm-dashboard/internal/dashboard/http"
	"github.com/odyssey-erp/scm-dashboard/internal/observability"
	"github.com/odyssey-erp/scm-dashboard/internal/shared"
	"github.com/odyssey-erp/scm-dashboard/internal/view"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/customers":
			_, _ = io.WriteString(w, `{"id":"c9","name":"Globex","email":"hq@globex.test","created_at":"2025-03-05T10:00:00"}`)
		case r.URL.Path == "/api/analytics/overview":
			_, _ = io.WriteString(w, `{"total_customers":0,"total_services":0,"total_bookings":0,"on_time_delivery_rate":0,"status_counts":{}}`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	t.Cleanup(backend.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, UploadMaxBytes: 1 << 20}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	client := api.NewClient(backend.URL+"/api", 5*time.Second).WithObserver(metrics)
	service := dashboard.NewService(client, dashboard.NewRedisStore(rdb, time.Hour, time.Minute), logger, metrics)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	csrf := shared.NewCSRFManager("csrf-secret")

	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   shared.NewSessionManager(rdb, "dashboard_session", "session-secret", time.Hour, false),
		CSRFManager:      csrf,
		DashboardHandler: dashboardhttp.NewHandler(logger, service, templates, csrf, nil, language.AmericanEnglish),
		Metrics:          metrics,
	})
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndRootRedirect(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
}

func TestStaticAssetsAreCached(t *testing.T) {
	router := newTestRouter(t)
	rr := serve(router, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Body.String(), ".badge-yellow")
}

func TestFormPostRequiresCSRFAndShowsFlash(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/dashboard?tab=customers", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	match := csrfPattern.FindStringSubmatch(rr.Body.String())
	require.Len(t, match, 2)
	token := match[1]

	form := url.Values{"name": {"Globex"}, "email": {"hq@globex.test"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/customers", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookies[0])
	rr = serve(router, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	form.Set(shared.CSRFFormField, token)
	req = httptest.NewRequest(http.MethodPost, "/dashboard/customers", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookies[0])
	rr = serve(router, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard?tab=customers", rr.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/dashboard?tab=customers", nil)
	req.AddCookie(cookies[0])
	rr = serve(router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Customer created successfully!")

	req = httptest.NewRequest(http.MethodGet, "/dashboard?tab=customers", nil)
	req.AddCookie(cookies[0])
	rr = serve(router, req)
	assert.NotContains(t, rr.Body.String(), "Customer created successfully!")
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	serve(router, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `scm_dashboard_http_requests_total{code="200",route="/dashboard"}`)
	assert.Contains(t, body, `scm_dashboard_api_calls_total{endpoint="GET /customers",outcome="ok"}`)
}
