package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	maxErrorBody    = 16 << 10
	requestIDHeader = "X-Request-Id"
)

// Observer receives one callback per completed booking-service call.
type Observer interface {
	ObserveAPICall(endpoint, outcome string, elapsed time.Duration)
}

// Client talks to the booking service rooted at BaseURL (which already ends in /api).
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
	inflight   singleflight.Group
}

// NewClient constructs a client. A zero timeout keeps the transport defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithObserver attaches a call observer, typically the metrics recorder.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListCustomers fetches every customer.
func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	if err := c.getJSON(ctx, "/customers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListServices fetches every catalogue service.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var out []Service
	if err := c.getJSON(ctx, "/services", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBookings fetches every booking.
func (c *Client) ListBookings(ctx context.Context) ([]Booking, error) {
	var out []Booking
	if err := c.getJSON(ctx, "/bookings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyticsOverview fetches the summary snapshot.
func (c *Client) AnalyticsOverview(ctx context.Context) (AnalyticsOverview, error) {
	var out AnalyticsOverview
	if err := c.getJSON(ctx, "/analytics/overview", &out); err != nil {
		return AnalyticsOverview{}, err
	}
	return out, nil
}

// DeliveryPerformance fetches per-booking delivery records. Concurrent callers share
// a single in-flight request.
func (c *Client) DeliveryPerformance(ctx context.Context) ([]DeliveryPerformanceRecord, error) {
	ch := c.inflight.DoChan("delivery-performance", func() (interface{}, error) {
		var out []DeliveryPerformanceRecord
		if err := c.getJSON(context.WithoutCancel(ctx), "/analytics/delivery-performance", &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		records, _ := res.Val.([]DeliveryPerformanceRecord)
		out := make([]DeliveryPerformanceRecord, len(records))
		copy(out, records)
		return out, nil
	}
}

// CreateCustomer posts a new customer.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerCreate) (Customer, error) {
	var out Customer
	if err := c.sendJSON(ctx, http.MethodPost, "/customers", "/customers", in, &out); err != nil {
		return Customer{}, err
	}
	return out, nil
}

// CreateService posts a new catalogue service.
func (c *Client) CreateService(ctx context.Context, in ServiceCreate) (Service, error) {
	var out Service
	if err := c.sendJSON(ctx, http.MethodPost, "/services", "/services", in, &out); err != nil {
		return Service{}, err
	}
	return out, nil
}

// CreateBooking posts a new booking.
func (c *Client) CreateBooking(ctx context.Context, in BookingCreate) (Booking, error) {
	var out Booking
	if err := c.sendJSON(ctx, http.MethodPost, "/bookings", "/bookings", in, &out); err != nil {
		return Booking{}, err
	}
	return out, nil
}

// UpdateBooking replaces the status (and optional delivery date) of a booking.
func (c *Client) UpdateBooking(ctx context.Context, id string, in BookingUpdate) (Booking, error) {
	if strings.TrimSpace(id) == "" {
		return Booking{}, errors.New("api: booking id required")
	}
	var out Booking
	path := "/bookings/" + url.PathEscape(id)
	if err := c.sendJSON(ctx, http.MethodPut, path, "/bookings/{id}", in, &out); err != nil {
		return Booking{}, err
	}
	return out, nil
}

// UploadBookings sends the file untouched as multipart field "file".
func (c *Client) UploadBookings(ctx context.Context, filename string, content io.Reader) (UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("api: buffer upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, err
	}

	var out UploadResult
	if err := c.do(ctx, http.MethodPost, "/upload/bookings", "/upload/bookings", body, writer.FormDataContentType(), &out); err != nil {
		return UploadResult{}, err
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, path, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("api: encode %s %s: %w", method, endpoint, err)
	}
	return c.do(ctx, method, path, endpoint, bytes.NewReader(payload), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path, endpoint string, body io.Reader, contentType string, out any) (err error) {
	start := time.Now()
	label := method + " " + endpoint
	defer func() {
		if c.observer != nil {
			c.observer.ObserveAPICall(label, outcomeOf(err), time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(requestIDHeader, requestID(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       endpoint,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(data),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, endpoint, err)
	}
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 {
			return "server_error"
		}
		return "client_error"
	}
	return "transport_error"
}

func requestID(ctx context.Context) string {
	if id := chimw.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
