package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveAPICall(endpoint, outcome string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, endpoint+"="+outcome)
}

func TestListCustomersDecodesTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/customers", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		_, _ = io.WriteString(w, `[
			{"id":"c1","name":"Acme","email":"ops@acme.test","phone":null,"created_at":"2025-03-01T10:00:00.123456+00:00"},
			{"id":"c2","name":"Globex","email":"hq@globex.test","phone":"555","created_at":"2025-03-02T08:30:00"}
		]`)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := NewClient(srv.URL+"/api", 0).WithObserver(obs)
	customers, err := client.ListCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)

	assert.Nil(t, customers[0].Phone)
	assert.Equal(t, 2025, customers[0].CreatedAt.Year())
	require.NotNil(t, customers[1].Phone)
	assert.Equal(t, "555", *customers[1].Phone)
	assert.Equal(t, time.UTC, customers[1].CreatedAt.Location())
	assert.Equal(t, 8, customers[1].CreatedAt.Hour())
	assert.Equal(t, []string{"GET /customers=ok"}, obs.calls)
}

func TestCreateServiceSendsNumbers(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"s1","name":"Freight","type":"logistics","base_price":12.5,"estimated_delivery_days":3,"created_at":"2025-01-01T00:00:00Z"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/", 0)
	svc, err := client.CreateService(context.Background(), ServiceCreate{
		Name:                  "Freight",
		Type:                  ServiceTypeLogistics,
		BasePrice:             12.5,
		EstimatedDeliveryDays: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", svc.ID)
	assert.Equal(t, 12.5, got["base_price"])
	assert.Equal(t, float64(3), got["estimated_delivery_days"])
	_, hasDescription := got["description"]
	assert.False(t, hasDescription)
}

func TestErrorDetailIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Customer not found"}`)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := NewClient(srv.URL+"/api", 0).WithObserver(obs)
	_, err := client.CreateBooking(context.Background(), BookingCreate{CustomerID: "x", ServiceID: "y", Quantity: 1})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Customer not found", Detail(err))
	assert.Equal(t, []string{"POST /bookings=client_error"}, obs.calls)
}

func TestValidationDetailListIsJoined(t *testing.T) {
	body := []byte(`{"detail":[{"loc":["body","base_price"],"msg":"value is not a valid float"},{"msg":"field required"}]}`)
	assert.Equal(t, "value is not a valid float; field required", parseDetail(body))
}

func TestMissingDetailFallsBackToGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/api", 0).ListBookings(context.Background())
	require.Error(t, err)
	assert.Equal(t, "unexpected response from booking service (HTTP 502)", Detail(err))
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url+"/api", time.Second).ListServices(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "booking service unavailable", Detail(err))
}

func TestUpdateBookingOmitsDeliveryDateUnlessSet(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/bookings/b-1", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		_, _ = io.WriteString(w, `{"id":"b-1","status":"confirmed"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api", 0)
	_, err := client.UpdateBooking(context.Background(), "b-1", BookingUpdate{Status: StatusConfirmed})
	require.NoError(t, err)

	at := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)
	_, err = client.UpdateBooking(context.Background(), "b-1", BookingUpdate{Status: StatusDelivered, ActualDeliveryDate: &at})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"status":"confirmed"}`, bodies[0])
	assert.JSONEq(t, `{"status":"delivered","actual_delivery_date":"2025-05-04T03:02:01Z"}`, bodies[1])
}

func TestUploadBookingsStreamsFileField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "bookings.csv", header.Filename)
		assert.Equal(t, "customer_name,customer_email,service_name\n", string(content))
		_, _ = io.WriteString(w, `{"filename":"bookings.csv","records_processed":1,"successful_imports":0,"failed_imports":1,"errors":["row 2: missing email"]}`)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL+"/api", 0).UploadBookings(context.Background(), "bookings.csv", strings.NewReader("customer_name,customer_email,service_name\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedImports)
	assert.Equal(t, []string{"row 2: missing email"}, res.Errors)
}

func TestDeliveryPerformanceNullDaysDecodeAsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"booking_id":"b1","estimated_days":3,"actual_days":null,"variance_days":null,"on_time":true}]`)
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL+"/api", 0).DeliveryPerformance(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, float64(0), records[0].ActualDays)
	assert.True(t, records[0].OnTime)
}

func TestTimestampRoundTrip(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01"`), &ts))
	assert.Equal(t, time.June, ts.Month())

	raw, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
