package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yurica-pos/internal/analytics"
	"yurica-pos/internal/api"
	"yurica-pos/internal/database/dbtest"
	eventsdb "yurica-pos/internal/events/db"
	"yurica-pos/internal/ingest"
	"yurica-pos/internal/logger"
	"yurica-pos/internal/menu"
	menudb "yurica-pos/internal/menu/db"
	"yurica-pos/internal/models"
	"yurica-pos/internal/order"
	"yurica-pos/internal/sse"
)

type testAPI struct {
	router http.Handler
	store  *eventsdb.DB
	hub    *sse.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	bunDB := dbtest.New(t)
	log := logger.NewNop()

	store := eventsdb.New(bunDB)
	proj := order.NewProjection()
	hub := sse.NewHub(16)
	t.Cleanup(hub.Close)
	menuSvc := menu.NewService(menudb.New(bunDB), nil, log)

	h := &api.Handler{
		Events: store,
		Ingest: ingest.NewService(store, proj, hub, menuSvc, log),
		Orders: proj,
		Sales:  analytics.NewService(store, proj, time.UTC),
		Menu:   menuSvc,
		Hub:    hub,
		Logger: log,
		Options: api.Options{
			HistoryDefault: 200,
			HistoryMax:     500,
			KeepAlive:      50 * time.Millisecond,
		},
	}
	return &testAPI{router: api.NewRouter(h, []string{"*"}), store: store, hub: hub}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type received struct {
	OK       bool         `json:"ok"`
	Received models.Event `json:"received"`
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	ts := time.Now().UnixMilli()

	rec := a.do(t, http.MethodPost, "/api/events",
		fmt.Sprintf(`{"type":"order","items":["Salmon"],"total_cents":1200,"ts":%d}`, ts))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[received](t, rec)
	assert.True(t, got.OK)
	assert.Equal(t, int64(1200), got.Received.TotalCents)
	assert.Equal(t, ts, got.Received.TS)
	orderID := got.Received.ID
	require.NotEmpty(t, orderID)

	rec = a.do(t, http.MethodGet, "/api/orders?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	active := decodeJSON[[]models.Order](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, orderID, active[0].ID)
	assert.Equal(t, models.StatusOrdered, active[0].Status)

	rec = a.do(t, http.MethodPatch, "/api/orders/"+orderID+"/status", `{"status":"delivered"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/orders?active=true", "")
	assert.Empty(t, decodeJSON[[]models.Order](t, rec))

	rec = a.do(t, http.MethodGet, "/api/orders", "")
	all := decodeJSON[[]models.Order](t, rec)
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusDelivered, all[0].Status)
}

func TestPatchStatusAppliesToOrderAheadOfServerClock(t *testing.T) {
	a := newTestAPI(t)
	ahead := time.Now().Add(30 * time.Second).UnixMilli()

	rec := a.do(t, http.MethodPost, "/api/events",
		fmt.Sprintf(`{"type":"order","items":["Salmon"],"total_cents":1200,"ts":%d}`, ahead))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	orderID := decodeJSON[received](t, rec).Received.ID

	rec = a.do(t, http.MethodPatch, "/api/orders/"+orderID+"/status", `{"status":"delivered"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/orders?active=true", "")
	assert.Empty(t, decodeJSON[[]models.Order](t, rec))
}

func TestPostEventEmptyBodyRecordsDefaultTap(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[received](t, rec)
	assert.Equal(t, "tap", got.Received.Type)
	assert.Equal(t, "button pressed", got.Received.Message)
	assert.Equal(t, "ios", got.Received.DeviceID)
}

func TestPatchStatusRejectsUnknownStatus(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPatch, "/api/orders/o1/status", `{"status":"eaten"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON[api.ErrorResponse](t, rec)
	assert.Equal(t, "invalid_status", body.Error)
	assert.Equal(t, "validation", body.Kind)
}

func TestPostEventRejectsMalformedBody(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/events", `{"type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", decodeJSON[api.ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodPatch, "/api/orders/o1/status", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "status body is still required")

	rec = a.do(t, http.MethodPost, "/api/events", `{"type":"order_status","status":"cooking"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_event", decodeJSON[api.ErrorResponse](t, rec).Error)
}

func TestPostEventPricesFromMenu(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/menu", `{"name":"Salmon","price_cents":1200}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decodeJSON[models.MenuItem](t, rec)
	assert.Equal(t, "AUD", item.Currency)

	rec = a.do(t, http.MethodPost, "/api/events", `{"type":"order","items":["Salmon","Salmon","Ghost"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2400), decodeJSON[received](t, rec).Received.TotalCents)

	// a later price change leaves the recorded total alone
	rec = a.do(t, http.MethodPatch, "/api/menu/"+item.ID, `{"price_cents":9999}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/orders", "")
	orders := decodeJSON[[]models.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2400), orders[0].TotalCents)
}

func TestEventHistoryLimit(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()
	for i := 0; i < 510; i++ {
		_, err := a.store.Append(ctx, models.Event{Type: "tap", TS: int64(1000 + i)})
		require.NoError(t, err)
	}

	rec := a.do(t, http.MethodGet, "/api/events?limit=2", "")
	events := decodeJSON[[]models.Event](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1509), events[0].TS)

	rec = a.do(t, http.MethodGet, "/api/events?limit=100000", "")
	assert.Len(t, decodeJSON[[]models.Event](t, rec), 500)

	rec = a.do(t, http.MethodGet, "/api/events?limit=nope", "")
	assert.Len(t, decodeJSON[[]models.Event](t, rec), 200)
}

func TestSalesEndpoints(t *testing.T) {
	a := newTestAPI(t)
	now := time.Now().UnixMilli()

	rec := a.do(t, http.MethodPost, "/api/events",
		fmt.Sprintf(`{"type":"order","items":["A","A"],"total_cents":500,"ts":%d}`, now-1000))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/orders/sales?from=%d&to=%d", now-1000, now), "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeJSON[analytics.SalesReport](t, rec)
	assert.Equal(t, 1, report.OrdersCount)
	assert.Equal(t, analytics.ItemSales{Count: 2, TotalCents: 1000}, report.ByItem["A"])

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/orders/sales?from=%d&to=%d", now-5000, now-1000), "")
	assert.Zero(t, decodeJSON[analytics.SalesReport](t, rec).OrdersCount, "to is exclusive")

	rec = a.do(t, http.MethodGet, "/api/orders/sales?from=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeJSON[analytics.SalesReport](t, rec).OrdersCount)

	rec = a.do(t, http.MethodGet, "/api/orders/sales/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeJSON[map[string]analytics.SalesReport](t, rec)
	assert.Len(t, summary, 6)
	assert.Equal(t, []analytics.TopItem{{Name: "A", Count: 2}}, summary["d7"].TopItems)

	rec = a.do(t, http.MethodGet, "/api/orders/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeJSON[analytics.Stats](t, rec)
	assert.Equal(t, 1, stats.ByStatus["ordered"])
	assert.Equal(t, 1, stats.ByCompany["Unknown"])
}

func TestMenuCRUD(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/menu", `{"price_cents":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name_required", decodeJSON[api.ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodPost, "/api/menu", `{"name":"Udon","price_cents":900,"category":"Noodles"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	item := decodeJSON[models.MenuItem](t, rec)

	rec = a.do(t, http.MethodPatch, "/api/menu/"+item.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_fields", decodeJSON[api.ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodGet, "/api/menu", "")
	assert.Len(t, decodeJSON[[]models.MenuItem](t, rec), 1)

	rec = a.do(t, http.MethodDelete, "/api/menu/"+item.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/menu", "")
	assert.Empty(t, decodeJSON[[]models.MenuItem](t, rec))
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestStreamDeliversIngestedEvents(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream; charset=utf-8", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	readFrame := func() string {
		var frame bytes.Buffer
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\n" {
				return frame.String()
			}
			frame.WriteString(line)
		}
	}

	assert.Equal(t, "event: ping\ndata: \"connected\"\n", readFrame())
	require.Eventually(t, func() bool { return a.hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	body := strings.NewReader(`{"type":"order","items":["Salmon"],"total_cents":1200}`)
	post, err := srv.Client().Post(srv.URL+"/api/events", "application/json", body)
	require.NoError(t, err)
	var ack received
	require.NoError(t, json.NewDecoder(post.Body).Decode(&ack))
	post.Body.Close()

	var sawEvent, sawKeepAlive bool
	for !(sawEvent && sawKeepAlive) {
		frame := readFrame()
		switch {
		case strings.HasPrefix(frame, "data: "):
			var evt models.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(frame), "data: ")), &evt))
			assert.Equal(t, ack.Received.ID, evt.ID)
			assert.Equal(t, int64(1200), evt.TotalCents)
			sawEvent = true
		case strings.HasPrefix(frame, "event: ping\ndata: "):
			sawKeepAlive = true
		}
	}

	cancel()
	assert.Eventually(t, func() bool { return a.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
