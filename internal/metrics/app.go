package metrics

import (
	"time"

	"github.com/namelens/coinbridge/internal/observability"
)

// Application-level metric names.
const (
	// Tool and REST calls, labelled "mcp.<tool>" or "rest.<op>".
	OperationsTotal = "coinbridge_operations_total"

	// Open websocket streams and stdio MCP sessions.
	ActiveSessions = "coinbridge_active_sessions"

	HealthCheckTotal    = "coinbridge_health_check_total"
	HealthCheckDuration = "coinbridge_health_check_duration_ms"

	ServerStartTime = "coinbridge_server_start_time_seconds"
)

// RecordOperation counts one served operation with its outcome.
func RecordOperation(operation string, success bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(
		OperationsTotal,
		1,
		map[string]string{
			"operation": operation,
			"status":    status,
		},
	)
}

// SetActiveSessions publishes the number of live sessions of a kind
// ("stream" or "stdio").
func SetActiveSessions(kind string, count int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(
		ActiveSessions,
		float64(count),
		map[string]string{"kind": kind},
	)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	_ = observability.TelemetrySystem.Counter(
		HealthCheckTotal,
		1,
		map[string]string{
			"check":  checkName,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		HealthCheckDuration,
		duration,
		map[string]string{"check": checkName},
	)
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
