package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billiard-admin-backend/config"
	"billiard-admin-backend/internal/booking"
	"billiard-admin-backend/internal/clock"
	"billiard-admin-backend/internal/dbtest"
	"billiard-admin-backend/internal/model"
	"billiard-admin-backend/internal/stats"
	"billiard-admin-backend/internal/store"
	"billiard-admin-backend/internal/sweep"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var noon = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router *gin.Engine
	store  store.Store
	clock  *clock.Manual
	table  *model.Table
}

func newTestServer(t *testing.T, push *webpush.Options) *testServer {
	t.Helper()
	st := store.NewGormStore(dbtest.Open(t))
	clk := clock.NewManual(noon)

	table := &model.Table{Name: "Table 1", HourlyRate: decimal.NewFromInt(50000)}
	require.NoError(t, st.CreateTable(context.Background(), table))

	h := NewHandler(
		st,
		booking.NewService(st, clk, nil, nil, 12),
		sweep.NewService(config.SweepConfig{Enabled: true, Interval: time.Minute}, st, clk, nil, nil, nil),
		stats.NewService(st, clk),
		time.UTC,
		push,
	)
	router := NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60})
	return &testServer{router: router, store: st, clock: clk, table: table}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createBooking(t *testing.T, start string, hours float64) model.Booking {
	t.Helper()
	w := s.do(t, http.MethodPut, "/api/create-booking", gin.H{
		"customer_name": "Dewi",
		"tableId":       s.table.ID,
		"startTime":     start,
		"durationHours": hours,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var b model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func TestBookingEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	b := s.createBooking(t, "2025-05-10T12:00:00Z", 2)
	assert.Equal(t, model.BookingInProgress, b.Status)
	assert.Equal(t, "100000", b.TotalPrice.String())

	t.Run("Second booking on an occupied table is a conflict", func(t *testing.T) {
		w := s.do(t, http.MethodPut, "/api/create-booking", gin.H{
			"customer_name": "Eka", "tableId": s.table.ID, "startTime": "2025-05-10T18:00:00Z", "durationHours": 1,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Extend", func(t *testing.T) {
		w := s.do(t, http.MethodPut, "/api/pool-tables/booking/extend-time", gin.H{"bookingId": b.ID, "hours": 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got model.Booking
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 3.0, got.DurationHours)
		assert.True(t, got.EndTime.Equal(noon.Add(3*time.Hour)))
	})

	t.Run("Tables show the running booking", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/pool-tables", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var tables []struct {
			ID            int64          `json:"id"`
			Status        string         `json:"status"`
			IsAvailable   bool           `json:"isAvailable"`
			ActiveBooking *model.Booking `json:"PoolBookings"`
			History       []model.Booking
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tables))
		require.Len(t, tables, 1)
		assert.Equal(t, "Occupied", tables[0].Status)
		assert.False(t, tables[0].IsAvailable)
		require.NotNil(t, tables[0].ActiveBooking)
		assert.Equal(t, b.ID, tables[0].ActiveBooking.ID)
	})

	t.Run("Lamp is on", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/esp/light/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var lights []LightStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lights))
		require.Len(t, lights, 1)
		assert.Equal(t, "ON", lights[0].LightStatus)
	})

	t.Run("End session frees the table", func(t *testing.T) {
		w := s.do(t, http.MethodPut, "/api/pool-tables/booking/end-session", gin.H{"bookingId": b.ID})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		tbl, err := s.store.GetTable(context.Background(), s.table.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TableAvailable, tbl.Status)

		w = s.do(t, http.MethodPut, "/api/pool-tables/booking/end-session", gin.H{"bookingId": b.ID})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("History lists the booking with its table", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/pool/get-all-bookings", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var all []model.Booking
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
		require.Len(t, all, 1)
		require.NotNil(t, all[0].Table)
		assert.Equal(t, "Table 1", all[0].Table.Name)
	})
}

func TestBookingEndpoints_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{name: "Missing fields", method: http.MethodPut, path: "/api/create-booking", body: gin.H{"tableId": 1}, status: http.StatusBadRequest},
		{name: "Unparseable start", method: http.MethodPut, path: "/api/create-booking",
			body: gin.H{"customer_name": "A", "tableId": 1, "startTime": "soon", "durationHours": 1}, status: http.StatusBadRequest},
		{name: "Elapsed window", method: http.MethodPut, path: "/api/create-booking",
			body: gin.H{"customer_name": "A", "tableId": 1, "startTime": "2025-05-10T08:00:00Z", "durationHours": 1}, status: http.StatusBadRequest},
		{name: "Unknown table", method: http.MethodPut, path: "/api/create-booking",
			body: gin.H{"customer_name": "A", "tableId": 99, "startTime": "2025-05-10T13:00:00Z", "durationHours": 1}, status: http.StatusNotFound},
		{name: "Unknown booking", method: http.MethodPut, path: "/api/pool-tables/booking/end-session", body: gin.H{"bookingId": 99}, status: http.StatusNotFound},
		{name: "Missing booking id", method: http.MethodPut, path: "/api/pool-tables/booking/cancel", body: gin.H{}, status: http.StatusBadRequest},
		{name: "Negative extension", method: http.MethodPut, path: "/api/pool-tables/booking/extend-time", body: gin.H{"bookingId": 1, "hours": -1}, status: http.StatusBadRequest},
		{name: "Bad maintenance id", method: http.MethodPut, path: "/api/pool-tables/abc/maintenance", body: gin.H{"maintenance": true}, status: http.StatusBadRequest},
		{name: "Bad revenue period", method: http.MethodGet, path: "/api/stats/revenue?period=year", status: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestTableEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/pool-tables", gin.H{"name": "Table 2", "hourly_rate": "65000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Table
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, model.TableAvailable, created.Status)

	w = s.do(t, http.MethodPost, "/api/pool-tables", gin.H{"name": "Table 3", "hourly_rate": "0"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := fmt.Sprintf("/api/pool-tables/%d/maintenance", created.ID)
	w = s.do(t, http.MethodPut, path, gin.H{"maintenance": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Maintenance"`)

	w = s.do(t, http.MethodPut, "/api/create-booking", gin.H{
		"customer_name": "A", "tableId": created.ID, "startTime": "2025-05-10T13:00:00Z", "durationHours": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, path, gin.H{"maintenance": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Available"`)

	w = s.do(t, http.MethodPut, "/api/pool-tables/999/maintenance", gin.H{"maintenance": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSweepEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	b := s.createBooking(t, "2025-05-10T13:00:00Z", 1)
	assert.Equal(t, model.BookingReserved, b.Status)

	s.clock.Set(noon.Add(90 * time.Minute))
	w := s.do(t, http.MethodPost, "/api/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report sweep.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []int64{b.ID}, report.Activated)

	s.clock.Set(noon.Add(2 * time.Hour))
	w = s.do(t, http.MethodPost, "/api/sweep", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []int64{b.ID}, report.Completed)

	w = s.do(t, http.MethodGet, "/esp/light/status", nil)
	assert.Contains(t, w.Body.String(), `"light_status":"OFF"`)
}

func TestStatsEndpoints_Cached(t *testing.T) {
	s := newTestServer(t, nil)
	s.createBooking(t, "2025-05-10T13:00:00Z", 2)

	w := s.do(t, http.MethodGet, "/api/stats/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var d stats.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, 1, d.ActiveBookings)
	assert.Equal(t, "100000", d.TotalRevenue.String())

	w = s.do(t, http.MethodGet, "/api/stats/dashboard", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = s.do(t, http.MethodGet, "/api/stats/revenue?period=day", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"2025-05-10"`)

	w = s.do(t, http.MethodGet, "/api/stats/utilization?days=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tableId"`)

	w = s.do(t, http.MethodGet, "/api/stats/utilization?days=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"days":7`)

	w = s.do(t, http.MethodGet, "/api/stats/utilization?days=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionEndpoints(t *testing.T) {
	s := newTestServer(t, &webpush.Options{VAPIDPublicKey: "public-key"})
	endpoint := "https://push.example.com/send/abc%3D"

	w := s.do(t, http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint": endpoint, "p256dh": "key", "auth": "secret", "subscribed_tables": []int64{s.table.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, fmt.Sprintf(`{"subscribed_tables":[%d]}`, s.table.ID), w.Body.String())

	w = s.do(t, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint": endpoint, "p256dh": "key2", "auth": "secret2", "subscribed_tables": []int64{},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.JSONEq(t, `{"subscribed_tables":[]}`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/subscriptions?endpoint="+url.QueryEscape("missing"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.JSONEq(t, `{"public_key":"public-key"}`, w.Body.String())
}

func TestVAPIDKeyNotConfigured(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
