package db

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"yurica-pos/internal/apperror"
	"yurica-pos/internal/models"
)

const (
	DefaultRecentLimit = 200
	MaxRecentLimit     = 500
)

// SortOrder selects the direction of range queries.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// DB is the append-only events log.
type DB struct {
	Bun *bun.DB

	// mu serializes appends so id/seq assignment never races.
	mu  sync.Mutex
	now func() time.Time
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB, now: time.Now}
}

// Append validates and stores one event, filling id, createdAt and seq.
// The returned event is exactly what was written.
func (d *DB) Append(ctx context.Context, evt models.Event) (models.Event, error) {
	if err := validate(evt); err != nil {
		return models.Event{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = d.now().UTC()
	}
	evt.Seq = 0

	if _, err := d.Bun.NewInsert().Model(&evt).Exec(ctx); err != nil {
		return models.Event{}, apperror.Storage("event_failed", err)
	}
	return evt, nil
}

func validate(evt models.Event) error {
	if strings.TrimSpace(evt.Type) == "" {
		return apperror.Validation("invalid_event", "type is required")
	}
	if evt.TS <= 0 {
		return apperror.Validation("invalid_event", "ts must be a positive epoch millisecond value")
	}
	if evt.IsOrderEvent() && !models.IsValidStatus(evt.Status) {
		return apperror.Validation("invalid_status", "status must be one of "+strings.Join(models.OrderStatuses, ", "))
	}
	if evt.Type == models.EventTypeOrderStatus && evt.OrderID == "" {
		return apperror.Validation("invalid_event", "orderId is required for order_status events")
	}
	return nil
}

// QueryByTypeAndRange returns events of one type with fromMs <= ts < toMs.
func (d *DB) QueryByTypeAndRange(ctx context.Context, eventType string, fromMs, toMs int64, order SortOrder) ([]models.Event, error) {
	events := []models.Event{}
	q := d.Bun.NewSelect().
		Model(&events).
		Where("e.type = ?", eventType).
		Where("e.ts >= ?", fromMs).
		Where("e.ts < ?", toMs)

	if order == Descending {
		q = q.OrderExpr("e.ts DESC, e.seq DESC")
	} else {
		q = q.OrderExpr("e.ts ASC, e.seq ASC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, apperror.Storage("events_query_failed", err)
	}
	return events, nil
}

// QueryRecent returns the newest events first. limit <= 0 means the default
// and anything above MaxRecentLimit is capped.
func (d *DB) QueryRecent(ctx context.Context, limit int) ([]models.Event, error) {
	limit = ClampLimit(limit, DefaultRecentLimit, MaxRecentLimit)

	events := []models.Event{}
	err := d.Bun.NewSelect().
		Model(&events).
		OrderExpr("e.ts DESC, e.seq DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.Storage("events_history_failed", err)
	}
	return events, nil
}

// All returns the full log in insertion order.
func (d *DB) All(ctx context.Context) ([]models.Event, error) {
	return d.ByTypes(ctx)
}

// ByTypes returns the events of the given types in insertion order. No types
// means every event.
func (d *DB) ByTypes(ctx context.Context, types ...string) ([]models.Event, error) {
	events := []models.Event{}
	q := d.Bun.NewSelect().Model(&events).OrderExpr("e.seq ASC")
	if len(types) > 0 {
		q = q.Where("e.type IN (?)", bun.In(types))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperror.Storage("events_query_failed", err)
	}
	return events, nil
}

// GetByID fetches one event.
func (d *DB) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var evt models.Event
	err := d.Bun.NewSelect().
		Model(&evt).
		Where("e.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// ClampLimit applies a default and a ceiling to a requested page size.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
