package order

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"yurica-pos/internal/models"
)

// EventSource is the part of the events store the projection replays from.
type EventSource interface {
	ByTypes(ctx context.Context, types ...string) ([]models.Event, error)
}

// Projection holds the current state of every order, folded from the
// order and order_status events of the log.
type Projection struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func NewProjection() *Projection {
	return &Projection{orders: make(map[string]*models.Order)}
}

// Apply folds one stored event into the view. Non-order events and status
// events for unknown orders are ignored. Applying the same event twice
// leaves the view unchanged.
func (p *Projection) Apply(evt models.Event) {
	if !evt.IsOrderEvent() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.apply(evt)
}

func (p *Projection) apply(evt models.Event) {
	switch evt.Type {
	case models.EventTypeOrder:
		o, ok := p.orders[evt.ID]
		if !ok {
			o = &models.Order{}
			p.orders[evt.ID] = o
		}
		o.ID = evt.ID
		o.TS = evt.TS
		o.Type = evt.Type
		o.Message = evt.Message
		o.DeviceID = evt.DeviceID
		o.Table = evt.Table
		o.Items = append([]string(nil), evt.Items...)
		o.Note = evt.Note
		o.CompanyName = evt.CompanyName
		o.CustomerName = evt.CustomerName
		o.TotalCents = evt.TotalCents
		o.Seq = evt.Seq

		status := evt.Status
		if status == "" {
			status = models.StatusOrdered
		}
		if !ok || newer(evt.TS, evt.Seq, o.StatusTS, o.StatusSeq) {
			setStatus(o, status, evt)
		}

	case models.EventTypeOrderStatus:
		o, ok := p.orders[evt.OrderID]
		if !ok {
			return
		}
		if newer(evt.TS, evt.Seq, o.StatusTS, o.StatusSeq) {
			setStatus(o, evt.Status, evt)
		}
	}
}

// newer orders status candidates by ts, then by log position.
func newer(ts, seq, curTS, curSeq int64) bool {
	if ts != curTS {
		return ts > curTS
	}
	return seq >= curSeq
}

func setStatus(o *models.Order, status string, evt models.Event) {
	o.Status = status
	o.StatusTS = evt.TS
	o.StatusSeq = evt.Seq
}

// Rebuild discards the view and replays the whole log from empty.
func (p *Projection) Rebuild(ctx context.Context, src EventSource) error {
	events, err := src.ByTypes(ctx, models.EventTypeOrder, models.EventTypeOrderStatus)
	if err != nil {
		return fmt.Errorf("replaying order events: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.orders = make(map[string]*models.Order, len(events))
	for _, evt := range events {
		p.apply(evt)
	}
	return nil
}

// ListOrders returns copies of the projected orders, newest first.
// activeOnly drops orders whose resolved status is delivered.
func (p *Projection) ListOrders(activeOnly bool) []models.Order {
	p.mu.RLock()
	out := make([]models.Order, 0, len(p.orders))
	for _, o := range p.orders {
		if activeOnly && !o.IsActive() {
			continue
		}
		cp := *o
		cp.Items = append([]string(nil), o.Items...)
		out = append(out, cp)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TS != out[j].TS {
			return out[i].TS > out[j].TS
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

// Status returns the resolved status of an order.
func (p *Projection) Status(orderID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	o, ok := p.orders[orderID]
	if !ok {
		return "", false
	}
	return o.Status, true
}

// StatusTS returns the ts of the event that set the order's current status.
func (p *Projection) StatusTS(orderID string) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.orders[orderID]
	if !ok {
		return 0, false
	}
	return o.StatusTS, true
}

func (p *Projection) Exists(orderID string) bool {
	_, ok := p.Status(orderID)
	return ok
}

func (p *Projection) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.orders)
}
