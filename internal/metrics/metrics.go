// Package metrics defines the Prometheus collectors for the voting core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redis operation metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Slot allocation metrics
var (
	// ClaimsTotal tracks slot claim attempts by outcome (claimed/exhausted/error)
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_claims_total",
			Help: "Slot claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ClaimCollisions tracks conditional-insert rejections during claims
	ClaimCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_claim_collisions_total",
			Help: "Conditional slot inserts rejected because the slot was already claimed",
		},
	)
)

// Voting metrics
var (
	// VotesTotal tracks recorded vote submissions
	VotesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votes_recorded_total",
			Help: "Total vote submissions recorded",
		},
	)
)

// Broadcast metrics
var (
	// BroadcastsTotal tracks fan-out sends by outcome (delivered/pruned/error)
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_sends_total",
			Help: "Fan-out send attempts by outcome",
		},
		[]string{"outcome"},
	)

	// PrunedConnections tracks registry entries removed after a gone transport
	PrunedConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pruned_connections_total",
			Help: "Connections pruned from the registry after the transport reported them gone",
		},
	)

	// ChangeEventsTotal tracks processed change feed events by category and status
	ChangeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_total",
			Help: "Change feed events processed by category and status",
		},
		[]string{"category", "status"},
	)
)

// WebSocket metrics
var (
	// ConnectedClients tracks the number of connected WebSocket clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	// SlowClientsEvicted tracks slow clients evicted due to full send buffers
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_clients_evicted_total",
			Help: "Slow WebSocket clients evicted due to full send buffers",
		},
	)

	// ConnectionsRejected tracks connections rejected by limiters, by reason
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "WebSocket connections rejected by limiters, by reason",
		},
		[]string{"reason"},
	)
)

// Handler metrics
var (
	// ActionsTotal tracks inbound viewer actions by action and status
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_actions_total",
			Help: "Inbound viewer actions by action and status",
		},
		[]string{"action", "status"},
	)
)
