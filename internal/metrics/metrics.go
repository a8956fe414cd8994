package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tandem_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tandem_ws_connections",
			Help: "Currently connected websocket clients",
		},
	)

	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_ws_connections_rejected_total",
			Help: "Connections terminated before registration",
		},
		[]string{"reason"},
	)

	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_events_broadcast_total",
			Help: "Events broadcast to rooms",
		},
		[]string{"event"},
	)

	SlowConsumersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tandem_ws_slow_consumers_dropped_total",
			Help: "Connections dropped because their send queue filled",
		},
	)

	// Automation metrics
	RulesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_rules_evaluated_total",
			Help: "Automation rules evaluated",
		},
		[]string{"outcome"}, // "fired" or "skipped"
	)

	RuleActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_rule_actions_total",
			Help: "Automation actions executed",
		},
		[]string{"type", "outcome"}, // outcome "ok" or "error"
	)

	// Notification metrics
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_notifications_created_total",
			Help: "Notification records created",
		},
		[]string{"category"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tandem_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tandem_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tandem_store_latency_seconds",
			Help:    "Database query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
