package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"yurica-pos/internal/apperror"
	eventsdb "yurica-pos/internal/events/db"
	"yurica-pos/internal/models"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

// TopItemsLimit is how many items a summary preset ranks.
const TopItemsLimit = 5

// OrderSource reads order events out of the log.
type OrderSource interface {
	QueryByTypeAndRange(ctx context.Context, eventType string, fromMs, toMs int64, order eventsdb.SortOrder) ([]models.Event, error)
}

// StatusResolver reports the current status of an order.
type StatusResolver interface {
	Status(orderID string) (string, bool)
}

// Service computes sales figures on demand, straight from the events log.
type Service struct {
	events   OrderSource
	statuses StatusResolver
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a sales service. loc decides where "today" starts and ends.
func NewService(events OrderSource, statuses StatusResolver, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{events: events, statuses: statuses, loc: loc, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ItemSales aggregates one menu item. TotalCents is the sum of the full
// total of every order listing the item, added once per occurrence; it is
// not a per-item price.
type ItemSales struct {
	Count      int   `json:"count"`
	TotalCents int64 `json:"total_cents"`
}

// DailySales is the revenue of one UTC calendar day.
type DailySales struct {
	Date       string `json:"date"`
	TotalCents int64  `json:"total_cents"`
}

type TopItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SalesReport covers the orders with From <= ts < To.
type SalesReport struct {
	From        int64                `json:"from"`
	To          int64                `json:"to"`
	OrdersCount int                  `json:"orders_count"`
	TotalCents  int64                `json:"total_cents"`
	ByItem      map[string]ItemSales `json:"byItem"`
	Daily       []DailySales         `json:"daily"`
	TopItems    []TopItem            `json:"topItems,omitempty"`
}

// Presets of the sales summary, in display order.
var Presets = []string{"today", "d7", "d30", "d90", "d180", "d365"}

var presetDays = map[string]int64{
	"d7":   7,
	"d30":  30,
	"d90":  90,
	"d180": 180,
	"d365": 365,
}

// SalesInRange aggregates the order events with fromMs <= ts < toMs.
func (s *Service) SalesInRange(ctx context.Context, fromMs, toMs int64) (*SalesReport, error) {
	orders, err := s.events.QueryByTypeAndRange(ctx, models.EventTypeOrder, fromMs, toMs, eventsdb.Ascending)
	if err != nil {
		return nil, apperror.Storage("sales_failed", err)
	}
	report, _ := aggregate(orders, fromMs, toMs)
	return report, nil
}

func aggregate(orders []models.Event, fromMs, toMs int64) (*SalesReport, []string) {
	report := &SalesReport{
		From:        fromMs,
		To:          toMs,
		OrdersCount: len(orders),
		ByItem:      make(map[string]ItemSales),
		Daily:       []DailySales{},
	}

	// first-seen order of item names, used to break topItems ties
	var seen []string
	daily := make(map[string]int64)

	for _, o := range orders {
		report.TotalCents += o.TotalCents

		for _, name := range o.Items {
			item, ok := report.ByItem[name]
			if !ok {
				seen = append(seen, name)
			}
			item.Count++
			item.TotalCents += o.TotalCents
			report.ByItem[name] = item
		}

		daily[utcDate(o.TS)] += o.TotalCents
	}

	for date, total := range daily {
		report.Daily = append(report.Daily, DailySales{Date: date, TotalCents: total})
	}
	sort.Slice(report.Daily, func(i, j int) bool {
		return report.Daily[i].Date < report.Daily[j].Date
	})

	return report, seen
}

// topItems ranks items by occurrence count. The sort is stable over
// first-seen order, so ties keep the earlier item.
func topItems(byItem map[string]ItemSales, seen []string, limit int) []TopItem {
	out := make([]TopItem, 0, len(seen))
	for _, name := range seen {
		out = append(out, TopItem{Name: name, Count: byItem[name].Count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SalesSummary evaluates every preset. dN covers [now-N days, now] through
// the half-open range query; today runs from local midnight to the next one.
func (s *Service) SalesSummary(ctx context.Context) (map[string]*SalesReport, error) {
	now := s.now()
	nowMs := now.UnixMilli()

	out := make(map[string]*SalesReport, len(Presets))
	for _, preset := range Presets {
		var fromMs, toMs int64
		if preset == "today" {
			fromMs, toMs = s.todayRange(now)
		} else {
			fromMs, toMs = nowMs-presetDays[preset]*dayMs, nowMs
		}

		orders, err := s.events.QueryByTypeAndRange(ctx, models.EventTypeOrder, fromMs, toMs, eventsdb.Ascending)
		if err != nil {
			return nil, apperror.Storage("sales_summary_failed", err)
		}
		report, seen := aggregate(orders, fromMs, toMs)
		report.TopItems = topItems(report.ByItem, seen, TopItemsLimit)
		out[preset] = report
	}
	return out, nil
}

func (s *Service) todayRange(now time.Time) (int64, int64) {
	local := now.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)
	return start.UnixMilli(), end.UnixMilli()
}

// Stats counts the orders placed in the last seven days.
type Stats struct {
	ByStatus  map[string]int `json:"byStatus"`
	ByDay     map[string]int `json:"byDay"`
	ByCompany map[string]int `json:"byCompany"`
}

// Stats groups the orders of the last seven days by resolved status, UTC day
// and company.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	since := s.now().UnixMilli() - 7*dayMs
	orders, err := s.events.QueryByTypeAndRange(ctx, models.EventTypeOrder, since, math.MaxInt64, eventsdb.Ascending)
	if err != nil {
		return nil, apperror.Storage("orders_stats_failed", err)
	}

	stats := &Stats{
		ByStatus:  make(map[string]int),
		ByDay:     make(map[string]int),
		ByCompany: make(map[string]int),
	}
	for _, o := range orders {
		status := o.Status
		if s.statuses != nil {
			if resolved, ok := s.statuses.Status(o.ID); ok {
				status = resolved
			}
		}
		if status == "" {
			status = models.StatusOrdered
		}
		stats.ByStatus[status]++

		stats.ByDay[utcDate(o.TS)]++

		company := o.CompanyName
		if company == "" {
			company = "Unknown"
		}
		stats.ByCompany[company]++
	}
	return stats, nil
}

func utcDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
