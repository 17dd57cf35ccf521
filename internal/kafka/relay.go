package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yurica-pos/internal/logger"
	"yurica-pos/internal/models"
)

// Relay republishes events in the background, in the order they were
// enqueued. Enqueue never blocks; events are dropped when the queue is full.
type Relay struct {
	pub     EventPublisher
	queue   chan models.Event
	log     *logger.Logger
	timeout time.Duration

	// OnFailure, when set, is called for every event that was dropped or
	// could not be published.
	OnFailure func(evt models.Event, err error)

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

func NewRelay(pub EventPublisher, size int, log *logger.Logger) *Relay {
	if size <= 0 {
		size = 256
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Relay{
		pub:     pub,
		queue:   make(chan models.Event, size),
		log:     log,
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
}

// Enqueue schedules evt for publication and reports whether it was queued.
// Events enqueued after Close are dropped.
func (r *Relay) Enqueue(evt models.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.fail(evt, fmt.Errorf("relay closed"))
		return false
	}
	select {
	case r.queue <- evt:
		return true
	default:
		r.fail(evt, fmt.Errorf("relay queue full"))
		return false
	}
}

// Run publishes queued events until Close is called. Events still queued
// at that point are flushed first.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)
	for evt := range r.queue {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		if err := r.pub.PublishEvent(pubCtx, evt); err != nil {
			r.fail(evt, err)
		}
		cancel()
	}
}

func (r *Relay) fail(evt models.Event, err error) {
	r.log.Warn("KAFKA", fmt.Sprintf("Event %s not republished: %v", evt.ID, err))
	if r.OnFailure != nil {
		r.OnFailure(evt, err)
	}
}

// Close stops accepting events, waits for Run to drain the queue and closes
// the publisher.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
		err = r.pub.Close()
	})
	return err
}
