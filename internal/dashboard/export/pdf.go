package export

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"time"

	"github.com/odyssey-erp/scm-dashboard/internal/dashboard"
)

// Renderer converts an HTML document into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// OverviewPayload is the content of the printable overview.
type OverviewPayload struct {
	GeneratedAt time.Time
	View        dashboard.View
}

var overviewTemplate = template.Must(template.New("overview").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Supply Chain Overview</title>
<style>
body{font-family:sans-serif;margin:24px;color:#111827}
h1{font-size:20px}h2{font-size:16px;margin-top:24px}
table{width:100%;border-collapse:collapse;margin-bottom:16px}
th,td{border:1px solid #ddd;padding:6px;text-align:left;font-size:12px}
th{background:#f5f5f5}
.cards{display:flex;gap:12px}.card{flex:1;border:1px solid #ddd;padding:8px}
.card b{display:block;font-size:18px}
</style></head><body>
<h1>Supply Chain Management</h1>
<p>Generated {{.GeneratedAt.UTC.Format "2006-01-02 15:04 MST"}}</p>
{{with .View.Overview}}
<div class="cards">
<div class="card">Total Customers<b>{{.TotalCustomers}}</b></div>
<div class="card">Total Services<b>{{.TotalServices}}</b></div>
<div class="card">Total Bookings<b>{{.TotalBookings}}</b></div>
<div class="card">On-Time Delivery Rate<b>{{.OnTimeDeliveryRate}}%</b></div>
</div>
{{if .StatusCounts}}<h2>Booking Status Distribution</h2>
<table><thead><tr><th>Status</th><th>Count</th></tr></thead><tbody>
{{range .StatusCounts}}<tr><td>{{.Label}}</td><td>{{.Count}}</td></tr>{{end}}
</tbody></table>{{.Chart}}{{end}}
{{end}}
{{with .View.Performance}}{{if .HasSummary}}
<h2>Delivery Performance</h2>
<div class="cards">
<div class="card">Average Delivery Time<b>{{.Summary.MeanActualDays}} days</b></div>
<div class="card">On-Time Deliveries<b>{{.Summary.OnTimePercent}}%</b></div>
<div class="card">Average Variance<b>{{.Summary.MeanVarianceDays}} days</b></div>
</div>
<table><thead><tr><th>Booking ID</th><th>Estimated Days</th><th>Actual Days</th><th>Variance</th><th>On Time</th></tr></thead><tbody>
{{range .Rows}}<tr><td>{{.ShortID}}</td><td>{{.EstimatedDays}}</td><td>{{.ActualDays}}</td><td>{{.Variance}}</td><td>{{if .OnTime}}Yes{{else}}No{{end}}</td></tr>{{end}}
</tbody></table>
{{end}}{{end}}
<h2>Bookings ({{len .View.Bookings}})</h2>
<table><thead><tr><th>Booking</th><th>Customer</th><th>Service</th><th>Quantity</th><th>Total</th><th>Status</th><th>Estimated Delivery</th></tr></thead><tbody>
{{range .View.Bookings}}<tr><td>{{.ShortID}}</td><td>{{.CustomerName}}</td><td>{{.ServiceName}}</td><td>{{.Quantity}}</td><td>{{.Total}}</td><td>{{.StatusLabel}}</td><td>{{.EstimatedDelivery}}</td></tr>{{end}}
</tbody></table>
</body></html>
`))

// OverviewHTML renders the printable overview document.
func OverviewHTML(payload OverviewPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := overviewTemplate.Execute(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderOverviewPDF renders the overview and converts it to PDF.
func RenderOverviewPDF(ctx context.Context, renderer Renderer, payload OverviewPayload) ([]byte, error) {
	if renderer == nil {
		return nil, errors.New("export: pdf renderer not configured")
	}
	html, err := OverviewHTML(payload)
	if err != nil {
		return nil, err
	}
	return renderer.RenderHTML(ctx, html)
}
