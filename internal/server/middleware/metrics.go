package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/observability"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Surfaces label requests by the protocol they belong to.
const (
	SurfaceMCP     = "mcp"
	SurfaceREST    = "rest"
	SurfaceService = "service"
)

// surfaceOf classifies a path as an MCP endpoint, a REST data route or a
// service route (health, version, metrics, index).
func surfaceOf(path string) string {
	switch {
	case path == "/mcp" || path == "/mcp-coingecko":
		return SurfaceMCP
	case strings.HasPrefix(path, "/binance/"), strings.HasPrefix(path, "/coingecko/"), strings.HasPrefix(path, "/coordinator/"):
		return SurfaceREST
	default:
		return SurfaceService
	}
}

// getEndpointPattern returns the chi route pattern, or a coarse family for
// requests that never matched a route, so labels stay low-cardinality.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/", path == "/version", path == "/metrics", path == "/mcp", path == "/mcp-coingecko":
		return path
	case strings.HasPrefix(path, "/binance/"):
		return "/binance/*"
	case strings.HasPrefix(path, "/coingecko/"):
		return "/coingecko/*"
	case strings.HasPrefix(path, "/coordinator/"):
		return "/coordinator/*"
	default:
		return "/unknown"
	}
}

// RequestMetrics emits request count, latency and response size per route
// and logs one line per request with its request id.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		endpoint := getEndpointPattern(r)
		surface := surfaceOf(r.URL.Path)
		labels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
			"surface":  surface,
			"status":   strconv.Itoa(rec.status),
		}

		sys := observability.TelemetrySystem
		_ = sys.Counter("http_requests_total", 1, labels)
		_ = sys.Histogram("http_request_duration_ms", duration, labels)
		_ = sys.Gauge("http_response_size_bytes", float64(rec.bytes), map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
		})
		if r.ContentLength > 0 {
			_ = sys.Gauge("http_request_size_bytes", float64(r.ContentLength), map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
			})
		}

		if rec.status >= 400 {
			errorType := "client_error"
			if rec.status >= 500 {
				errorType = "server_error"
			}
			_ = sys.Counter("http_errors_total", 1, map[string]string{
				"endpoint":   endpoint,
				"surface":    surface,
				"status":     strconv.Itoa(rec.status),
				"error_type": errorType,
			})
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.String("surface", surface),
				zap.Int("status", rec.status),
				zap.Duration("duration", duration),
				zap.Int64("response_size", rec.bytes),
				zap.String("requestID", GetRequestID(r.Context())),
			)
		}
	})
}
