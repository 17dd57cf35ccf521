package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_events_ingested_total",
			Help: "Total number of events appended to the log",
		},
		[]string{"type"},
	)

	EventsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_events_rejected_total",
			Help: "Total number of ingestion requests rejected, by error code",
		},
		[]string{"code"},
	)

	BroadcastDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_broadcast_dropped_subscribers_total",
			Help: "Total number of stream subscribers pruned because their queue was full",
		},
	)

	KafkaPublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_kafka_publish_failures_total",
			Help: "Total number of events that could not be republished to kafka",
		},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_ingest_duration_seconds",
			Help:    "Duration of the ingestion pipeline from validation to broadcast",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Recorded by Instrument.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. subscribers
// reports the live stream count at scrape time.
func Register(subscribers func() int) {
	registerOnce.Do(func() {
		prometheus.MustRegister(EventsIngestedTotal)
		prometheus.MustRegister(EventsRejectedTotal)
		prometheus.MustRegister(BroadcastDroppedTotal)
		prometheus.MustRegister(KafkaPublishFailuresTotal)
		prometheus.MustRegister(IngestDuration)
		prometheus.MustRegister(httpRequestsTotal)
		prometheus.MustRegister(httpRequestDuration)

		if subscribers != nil {
			prometheus.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "pos_stream_subscribers",
					Help: "Number of connected live stream subscribers",
				},
				func() float64 { return float64(subscribers()) },
			))
		}
	})
}

// Instrument records request count and latency per chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				handler = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestDuration.WithLabelValues(handler, r.Method).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(handler, r.Method, strconv.Itoa(status)).Inc()
	})
}
