package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warbler_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// MessagesCreated counts warbles posted.
	MessagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warbler_messages_created_total",
		Help: "Total number of messages created",
	})

	// LikeToggles counts like state changes by direction (like / unlike).
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_like_toggles_total",
		Help: "Total number of like toggles by direction",
	}, []string{"direction"})

	// FollowChanges counts follow/unfollow operations by direction.
	FollowChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_follow_changes_total",
		Help: "Total number of follow graph changes by direction",
	}, []string{"direction"})

	// AuthFailures counts failed authentication attempts by reason.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_auth_failures_total",
		Help: "Total number of failed authentication attempts by reason",
	}, []string{"reason"})

	// SessionsActive is the gauge of live login sessions in the session store.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warbler_sessions_active",
		Help: "Number of active login sessions",
	})
)

// ObserveQuery records the latency of a database query. The GORM logger calls
// this from its trace hook for every executed statement.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
