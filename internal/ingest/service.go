package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"yurica-pos/internal/apperror"
	"yurica-pos/internal/logger"
	"yurica-pos/internal/metrics"
	"yurica-pos/internal/models"
)

type EventStore interface {
	Append(ctx context.Context, evt models.Event) (models.Event, error)
}

type Projector interface {
	Apply(evt models.Event)
	StatusTS(orderID string) (int64, bool)
}

type Broadcaster interface {
	Publish(payload any) (int, error)
}

// PriceLookup is the menu's view of current prices. Unknown names are
// absent from the returned map.
type PriceLookup interface {
	Prices(ctx context.Context, names []string) (map[string]int64, error)
}

// Republisher forwards stored events downstream without blocking.
type Republisher interface {
	Enqueue(evt models.Event) bool
}

// Service runs the ingestion pipeline: validate, price, append, project,
// broadcast, republish. Runs are serialized so subscribers see events in
// log order and never before they are stored.
type Service struct {
	mu sync.Mutex

	store     EventStore
	projector Projector
	hub       Broadcaster
	prices    PriceLookup
	relay     Republisher
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithRepublisher forwards every stored event to r after broadcast.
func WithRepublisher(r Republisher) Option {
	return func(s *Service) { s.relay = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store EventStore, projector Projector, hub Broadcaster, prices PriceLookup, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		store:     store,
		projector: projector,
		hub:       hub,
		prices:    prices,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest parses, stores and fans out one device event.
func (s *Service) Ingest(ctx context.Context, req EventRequest) (models.Event, error) {
	parsed, err := Parse(req, s.now())
	if err != nil {
		s.reject(err)
		return models.Event{}, err
	}
	return s.run(ctx, parsed)
}

// UpdateStatus records a status change for orderID. An id the projection
// does not know is still logged and broadcast; the view ignores it.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (models.Event, error) {
	status = strings.TrimSpace(status)
	if !models.IsValidStatus(status) {
		err := invalidStatus()
		s.reject(err)
		return models.Event{}, err
	}
	if strings.TrimSpace(orderID) == "" {
		err := apperror.Validation("invalid_event", "order id is required")
		s.reject(err)
		return models.Event{}, err
	}

	return s.run(ctx, StatusChanged{
		Envelope: Envelope{
			TS:       s.statusChangeTS(orderID),
			Message:  "status changed to " + status,
			DeviceID: "dashboard",
		},
		OrderID: orderID,
		Status:  status,
	})
}

// statusChangeTS stamps a dashboard status change. Order ts comes from the
// device clock, so the change never sorts before the status it replaces;
// an equal ts resolves by log position.
func (s *Service) statusChangeTS(orderID string) int64 {
	ts := s.now().UnixMilli()
	if cur, ok := s.projector.StatusTS(orderID); ok && cur > ts {
		ts = cur
	}
	return ts
}

func (s *Service) run(ctx context.Context, req Request) (models.Event, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evt := req.Event()

	if o, ok := req.(OrderPlaced); ok && o.TotalCents == nil {
		total, err := s.computeTotal(ctx, o.Items)
		if err != nil {
			s.reject(err)
			return models.Event{}, err
		}
		evt.TotalCents = total
	}

	stored, err := s.store.Append(ctx, evt)
	if err != nil {
		s.reject(err)
		s.log.Error("EVENT", fmt.Sprintf("Append of %s event failed: %v", evt.Type, err))
		return models.Event{}, err
	}
	metrics.EventsIngestedTotal.WithLabelValues(stored.Type).Inc()
	s.log.LogEvent("APPEND", stored.ID, fmt.Sprintf("%s ts=%d total=%d", stored.Type, stored.TS, stored.TotalCents))

	s.projector.Apply(stored)

	dropped, err := s.hub.Publish(stored)
	if err != nil {
		s.log.Error("SSE", fmt.Sprintf("Broadcast of %s failed: %v", stored.ID, err))
	}
	if dropped > 0 {
		metrics.BroadcastDroppedTotal.Add(float64(dropped))
		s.log.Warn("SSE", fmt.Sprintf("Pruned %d slow subscriber(s) while broadcasting %s", dropped, stored.ID))
	}

	if s.relay != nil {
		s.relay.Enqueue(stored)
	}

	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	return stored, nil
}

// computeTotal sums current menu prices. Names missing from the menu add 0.
func (s *Service) computeTotal(ctx context.Context, items []string) (int64, error) {
	if len(items) == 0 || s.prices == nil {
		return 0, nil
	}
	prices, err := s.prices.Prices(ctx, items)
	if err != nil {
		s.log.Error("MENU", fmt.Sprintf("Price lookup failed: %v", err))
		return 0, apperror.Storage("event_failed", err)
	}

	var total int64
	for _, name := range items {
		total += prices[name]
	}
	return total, nil
}

func (s *Service) reject(err error) {
	code := apperror.From(err, "event_failed").Code()
	metrics.EventsRejectedTotal.WithLabelValues(code).Inc()
}
