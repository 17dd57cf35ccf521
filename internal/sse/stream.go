package sse

import (
	"context"
	"fmt"
	"io"
	"time"
)

const DefaultKeepAlive = 15 * time.Second

// Flusher pushes buffered frames to the client.
type Flusher func() error

// Stream writes sub's queue to w as text/event-stream frames until the
// client goes away (ctx), a write fails or the hub removes sub. It always
// removes sub from the hub before returning.
func (h *Hub) Stream(ctx context.Context, sub *Subscriber, w io.Writer, flush Flusher, keepAlive time.Duration) error {
	defer h.Remove(sub)

	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	if flush == nil {
		flush = func() error { return nil }
	}

	send := func(frame string) error {
		if _, err := io.WriteString(w, frame); err != nil {
			return err
		}
		return flush()
	}

	if err := send("event: ping\ndata: \"connected\"\n\n"); err != nil {
		return fmt.Errorf("writing connected frame: %w", err)
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case msg := <-sub.Messages():
			if err := send("data: " + string(msg) + "\n\n"); err != nil {
				return fmt.Errorf("writing event frame: %w", err)
			}
		case t := <-ticker.C:
			if err := send(fmt.Sprintf("event: ping\ndata: %d\n\n", t.UnixMilli())); err != nil {
				return fmt.Errorf("writing keep-alive frame: %w", err)
			}
		}
	}
}
