package metrics

import (
	"github.com/namelens/coinbridge/internal/observability"
)

// Coordinator metric names
const (
	CoordinatorCacheHitsTotal      = "coordinator_cache_hits_total"
	CoordinatorCacheMissesTotal    = "coordinator_cache_misses_total"
	CoordinatorDedupSharedTotal    = "coordinator_dedup_shared_total"
	CoordinatorRateWaitsTotal      = "coordinator_rate_waits_total"
	CoordinatorExecutorErrorsTotal = "coordinator_executor_errors_total"
)

// RecordCoordinatorEvent increments one of the coordinator counters for a pool
// and request category.
func RecordCoordinatorEvent(name, pool, category string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		name,
		1,
		map[string]string{
			"pool":     pool,
			"category": category,
		},
	)
}

// RecordUpstreamRequest counts an outbound HTTP call by host family and outcome.
func RecordUpstreamRequest(family string, status int, fallback bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	outcome := "ok"
	switch {
	case status == 0:
		outcome = "network_error"
	case status >= 400:
		outcome = "http_error"
	}
	labels := map[string]string{
		"family":  family,
		"outcome": outcome,
	}
	if fallback {
		labels["fallback"] = "true"
	}
	_ = observability.TelemetrySystem.Counter("upstream_requests_total", 1, labels)
}

// SetCoordinatorWindow publishes the current rate window of a pool.
func SetCoordinatorWindow(pool string, weightUsed, maxWeight, cacheEntries, pending int) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{"pool": pool}
	_ = observability.TelemetrySystem.Gauge("coordinator_weight_used", float64(weightUsed), labels)
	_ = observability.TelemetrySystem.Gauge("coordinator_max_weight", float64(maxWeight), labels)
	_ = observability.TelemetrySystem.Gauge("coordinator_cache_entries", float64(cacheEntries), labels)
	_ = observability.TelemetrySystem.Gauge("coordinator_pending_requests", float64(pending), labels)
}
