package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"yurica-pos/internal/analytics"
	"yurica-pos/internal/apperror"
	"yurica-pos/internal/ingest"
	"yurica-pos/internal/logger"
	"yurica-pos/internal/menu"
	"yurica-pos/internal/models"
	"yurica-pos/internal/order"
	"yurica-pos/internal/sse"
)

// EventHistory reads the newest events of the log.
type EventHistory interface {
	QueryRecent(ctx context.Context, limit int) ([]models.Event, error)
}

type Handler struct {
	Events  EventHistory
	Ingest  *ingest.Service
	Orders  *order.Projection
	Sales   *analytics.Service
	Menu    *menu.Service
	Hub     *sse.Hub
	Logger  *logger.Logger
	Options Options
}

type Options struct {
	HistoryDefault int
	HistoryMax     int
	KeepAlive      time.Duration
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return decode(w, r, v, false)
}

// decodeOptionalBody treats an empty body as {}.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) error {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}
	return apperror.Validation("invalid_body", "request body must be a JSON object").Wrap(err)
}

// ---------------- EVENTS ----------------

func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req ingest.EventRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("PostEvent: %v", err))
		writeError(w, err, "event_failed")
		return
	}

	stored, err := h.Ingest.Ingest(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("PostEvent: rejected: %v", err))
		writeError(w, err, "event_failed")
		return
	}

	writeJSON(w, http.StatusOK, OKResponse{OK: true, Received: stored})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = h.Options.HistoryDefault
	}
	if h.Options.HistoryMax > 0 && limit > h.Options.HistoryMax {
		limit = h.Options.HistoryMax
	}

	events, err := h.Events.QueryRecent(r.Context(), limit)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: %v", err))
		writeError(w, err, "events_history_failed")
		return
	}

	noStore(w)
	writeJSON(w, http.StatusOK, events)
}

// StreamEvents holds the connection open and pushes every new event.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Hub.Subscribe()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "stream_closed", Kind: string(apperror.KindInternal), Message: "server is shutting down"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	// the server write timeout would otherwise cut the stream
	_ = rc.SetWriteDeadline(time.Time{})

	h.Logger.LogStream("OPEN", sub.ID, fmt.Sprintf("%d connected", h.Hub.Count()))
	err = h.Hub.Stream(r.Context(), sub, w, rc.Flush, h.Options.KeepAlive)
	if err != nil {
		h.Logger.LogStream("ERROR", sub.ID, err.Error())
	}
	h.Logger.LogStream("CLOSE", sub.ID, fmt.Sprintf("%d connected", h.Hub.Count()))
}

// ---------------- ORDERS ----------------

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	active := r.URL.Query().Get("active") == "true"

	noStore(w)
	writeJSON(w, http.StatusOK, h.Orders.ListOrders(active))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err, "order_status_failed")
		return
	}

	if _, err := h.Ingest.UpdateStatus(r.Context(), orderID, body.Status); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateOrderStatus: order %s: %v", orderID, err))
		writeError(w, err, "order_status_failed")
		return
	}
	if !h.Orders.Exists(orderID) {
		h.Logger.Warn("API", fmt.Sprintf("UpdateOrderStatus: order %s is unknown, status event logged only", orderID))
	}

	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) GetSales(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UnixMilli()
	from := queryMillis(r, "from", now-7*24*60*60*1000)
	to := queryMillis(r, "to", now)

	report, err := h.Sales.SalesInRange(r.Context(), from, to)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSales: %v", err))
		writeError(w, err, "sales_failed")
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetSalesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Sales.SalesSummary(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSalesSummary: %v", err))
		writeError(w, err, "sales_summary_failed")
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Sales.Stats(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetStats: %v", err))
		writeError(w, err, "orders_stats_failed")
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, stats)
}

// queryMillis reads an epoch-ms parameter. Missing, zero and non-numeric
// values fall back to def.
func queryMillis(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v != 0 {
		return v
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f != 0 {
		return int64(f)
	}
	return def
}

// ---------------- MENU ----------------

func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.Menu.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMenu: %v", err))
		writeError(w, err, "db_read_failed")
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var item models.MenuItem
	if err := decodeBody(w, r, &item); err != nil {
		writeError(w, err, "db_insert_failed")
		return
	}
	item.ID = ""

	created, err := h.Menu.Create(r.Context(), item)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateMenuItem: %v", err))
		writeError(w, err, "db_insert_failed")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch models.MenuItemPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, err, "db_update_failed")
		return
	}

	if err := h.Menu.Update(r.Context(), id, patch); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateMenuItem: %s: %v", id, err))
		writeError(w, err, "db_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Menu.Delete(r.Context(), id); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteMenuItem: %s: %v", id, err))
		writeError(w, err, "db_delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}
