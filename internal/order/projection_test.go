package order_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yurica-pos/internal/database/dbtest"
	eventsdb "yurica-pos/internal/events/db"
	"yurica-pos/internal/models"
	"yurica-pos/internal/order"
)

type sliceSource struct {
	events []models.Event
	err    error
}

func (s sliceSource) ByTypes(_ context.Context, types ...string) ([]models.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Event
	for _, e := range s.events {
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func placed(id string, seq, ts int64) models.Event {
	return models.Event{Seq: seq, ID: id, TS: ts, Type: models.EventTypeOrder, Items: []string{"Salmon"}, TotalCents: 1200, Status: models.StatusOrdered}
}

func statusChange(orderID, status string, seq, ts int64) models.Event {
	return models.Event{Seq: seq, ID: fmt.Sprintf("s-%d", seq), TS: ts, Type: models.EventTypeOrderStatus, OrderID: orderID, Status: status}
}

func TestApplyLatestStatusWins(t *testing.T) {
	p := order.NewProjection()
	p.Apply(placed("o1", 1, 1000))
	p.Apply(statusChange("o1", models.StatusCooking, 2, 3000))
	p.Apply(statusChange("o1", models.StatusConfirmed, 3, 2000))

	status, ok := p.Status("o1")
	require.True(t, ok)
	assert.Equal(t, models.StatusCooking, status, "an older ts must not override a newer one")
}

func TestApplyTieBrokenByLogOrder(t *testing.T) {
	p := order.NewProjection()
	p.Apply(placed("o1", 1, 1000))
	p.Apply(statusChange("o1", models.StatusCooking, 2, 2000))
	p.Apply(statusChange("o1", models.StatusDelivering, 3, 2000))

	status, _ := p.Status("o1")
	assert.Equal(t, models.StatusDelivering, status)
}

func TestApplyDefaultsToOrdered(t *testing.T) {
	p := order.NewProjection()
	evt := placed("o1", 1, 1000)
	evt.Status = ""
	p.Apply(evt)

	status, ok := p.Status("o1")
	require.True(t, ok)
	assert.Equal(t, models.StatusOrdered, status)
}

func TestApplyIgnoresDanglingAndTelemetry(t *testing.T) {
	p := order.NewProjection()
	p.Apply(statusChange("missing", models.StatusDelivered, 1, 1000))
	p.Apply(models.Event{Seq: 2, ID: "tap-1", TS: 1000, Type: "tap"})

	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Exists("missing"))
	assert.Empty(t, p.ListOrders(false))
}

func TestApplyIsIdempotent(t *testing.T) {
	p := order.NewProjection()
	o := placed("o1", 1, 1000)
	s := statusChange("o1", models.StatusDelivered, 2, 2000)

	p.Apply(o)
	p.Apply(s)
	before := p.ListOrders(false)

	p.Apply(o)
	p.Apply(s)
	assert.Equal(t, before, p.ListOrders(false))
}

func TestListOrdersActiveFilterAndOrdering(t *testing.T) {
	p := order.NewProjection()
	p.Apply(placed("old", 1, 1000))
	p.Apply(placed("same-ts-first", 2, 5000))
	p.Apply(placed("same-ts-second", 3, 5000))
	p.Apply(placed("done", 4, 3000))
	p.Apply(statusChange("done", models.StatusDelivered, 5, 4000))

	all := p.ListOrders(false)
	ids := make([]string, len(all))
	for i, o := range all {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"same-ts-second", "same-ts-first", "done", "old"}, ids)

	for _, o := range p.ListOrders(true) {
		assert.NotEqual(t, models.StatusDelivered, o.Status)
		assert.NotEqual(t, "done", o.ID)
	}
	assert.Len(t, p.ListOrders(true), 3)
}

func TestListOrdersReturnsCopies(t *testing.T) {
	p := order.NewProjection()
	p.Apply(placed("o1", 1, 1000))

	list := p.ListOrders(false)
	list[0].Items[0] = "Tampered"
	list[0].Status = models.StatusDelivered

	again := p.ListOrders(false)
	assert.Equal(t, "Salmon", again[0].Items[0])
	assert.Equal(t, models.StatusOrdered, again[0].Status)
}

func TestRebuildReplacesState(t *testing.T) {
	p := order.NewProjection()
	p.Apply(placed("stale", 1, 1000))

	src := sliceSource{events: []models.Event{
		placed("o1", 1, 1000),
		{Seq: 2, ID: "t", TS: 1100, Type: "tap"},
		statusChange("o1", models.StatusCooking, 3, 1200),
	}}
	require.NoError(t, p.Rebuild(context.Background(), src))

	assert.False(t, p.Exists("stale"))
	status, ok := p.Status("o1")
	require.True(t, ok)
	assert.Equal(t, models.StatusCooking, status)
}

func TestRebuildPropagatesSourceError(t *testing.T) {
	p := order.NewProjection()
	p.Apply(placed("kept", 1, 1000))

	err := p.Rebuild(context.Background(), sliceSource{err: errors.New("disk gone")})
	require.Error(t, err)
	assert.True(t, p.Exists("kept"), "a failed replay leaves the previous view")
}

// Incremental application of every stored event must match a replay of the log.
func TestIncrementalMatchesReplay(t *testing.T) {
	ctx := context.Background()
	store := eventsdb.New(dbtest.New(t))
	rng := rand.New(rand.NewSource(42))

	incremental := order.NewProjection()
	var orderIDs []string

	for i := 0; i < 300; i++ {
		ts := int64(1_000_000 + rng.Intn(5000))
		var evt models.Event

		switch roll := rng.Intn(10); {
		case roll < 3 || len(orderIDs) == 0:
			evt = models.Event{
				Type:       models.EventTypeOrder,
				TS:         ts,
				Items:      []string{"Salmon", "Udon"}[:1+rng.Intn(2)],
				TotalCents: int64(rng.Intn(5000)),
				Status:     models.OrderStatuses[rng.Intn(len(models.OrderStatuses))],
			}
		case roll < 9:
			evt = models.Event{
				Type:    models.EventTypeOrderStatus,
				TS:      ts,
				OrderID: orderIDs[rng.Intn(len(orderIDs))],
				Status:  models.OrderStatuses[rng.Intn(len(models.OrderStatuses))],
			}
			if rng.Intn(20) == 0 {
				evt.OrderID = "dangling"
			}
		default:
			evt = models.Event{Type: "tap", TS: ts, Message: "button pressed"}
		}

		stored, err := store.Append(ctx, evt)
		require.NoError(t, err)
		if stored.Type == models.EventTypeOrder {
			orderIDs = append(orderIDs, stored.ID)
		}
		incremental.Apply(stored)
	}

	replayed := order.NewProjection()
	require.NoError(t, replayed.Rebuild(ctx, store))

	assert.Equal(t, replayed.ListOrders(false), incremental.ListOrders(false))
	assert.Equal(t, replayed.ListOrders(true), incremental.ListOrders(true))
}
