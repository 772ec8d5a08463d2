package metrics

import (
	"strconv"

	"github.com/namelens/coinbridge/internal/observability"
	"github.com/namelens/coinbridge/internal/upstream"
)

// Error metric names
const (
	ErrorsTotalName      = "coinbridge_errors_total"
	PanicsTotalName      = "coinbridge_panics_total"
	ErrorsByEndpointName = "coinbridge_errors_by_endpoint"
	ToolErrorsTotalName  = "coinbridge_mcp_tool_errors_total"
)

func count(name string, labels map[string]string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(name, 1, labels)
}

// RecordError records a REST error envelope by code and HTTP status.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordErrorByEndpoint records an error by route pattern.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpointName, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

// RecordToolError counts a failed MCP tool call by the upstream failure
// class, so rate limiting and geo-blocking show up separately.
func RecordToolError(server, tool string, err error) {
	class := string(upstream.Classify(err))
	if class == "" {
		class = string(upstream.ClassFailed)
	}
	count(ToolErrorsTotalName, map[string]string{
		"server": server,
		"tool":   tool,
		"class":  class,
	})
}

// RecordPanic records a recovered panic in an HTTP handler or MCP tool.
func RecordPanic() {
	count(PanicsTotalName, nil)
}
