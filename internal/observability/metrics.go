// Package observability holds the Prometheus collectors and the OpenTelemetry
// tracer used across the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignUps counts sign-up attempts by outcome (created, invalid, conflict, error).
	SignUps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblogs_signups_total",
		Help: "Total sign-up attempts by outcome",
	}, []string{"outcome"})

	// PostsCreated counts posts persisted through the feed workflow.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblogs_posts_created_total",
		Help: "Total number of posts created",
	})

	// ValidationFailures counts rejected fields across all forms.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblogs_validation_failures_total",
		Help: "Total field validation failures by form and field",
	}, []string{"form", "field"})

	// UniqueViolations counts uniqueness races lost at commit time.
	UniqueViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblogs_unique_violations_total",
		Help: "Unique constraint violations translated at the storage boundary",
	}, []string{"field"})

	// FeedCacheLookups counts feed cache hits and misses.
	FeedCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblogs_feed_cache_lookups_total",
		Help: "Feed cache lookups by result",
	}, []string{"result"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblogs_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// LiveFeedConnections is the gauge of open live feed websockets.
	LiveFeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "microblogs_live_feed_connections",
		Help: "Number of open live feed WebSocket connections",
	})

	// LiveFeedDrops counts messages dropped for slow live feed clients.
	LiveFeedDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblogs_live_feed_backpressure_drops_total",
		Help: "Live feed messages dropped because a client send buffer was full",
	})
)

// RecordValidationFailures counts every failing field of a rejected form.
func RecordValidationFailures(form string, fields []string) {
	for _, f := range fields {
		ValidationFailures.WithLabelValues(form, f).Inc()
	}
}
