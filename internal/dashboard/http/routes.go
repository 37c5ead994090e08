package dashboardhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/scm-dashboard/internal/shared"
)

// MountRoutes registers dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/dashboard", h.handleDashboard)
	r.Get("/dashboard/state.json", h.handleState)
	r.Get("/dashboard/upload/template.xlsx", h.handleUploadTemplate)
	r.Post("/dashboard/refresh", h.handleRefresh)
	r.Post("/dashboard/customers", h.handleCreateCustomer)
	r.Post("/dashboard/services", h.handleCreateService)
	r.Post("/dashboard/bookings", h.handleCreateBooking)
	r.Post("/dashboard/bookings/{id}/status", h.handleUpdateStatus)
	r.Post("/dashboard/upload", h.handleUpload)
	r.Post("/dashboard/analytics/performance", h.handlePerformance)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/dashboard/export/bookings.csv", h.handleBookingsCSV)
		gr.Get("/dashboard/export/bookings.xlsx", h.handleBookingsXLSX)
		gr.Get("/dashboard/export/overview.pdf", h.handleOverviewPDF)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.ID != "" {
		return "session:" + sess.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
