package monitoring

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// MetricsMiddleware provides middleware for collecting metrics
type MetricsMiddleware struct {
	metrics *Metrics
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(metrics *Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{
		metrics: metrics,
	}
}

// HTTPMiddleware creates HTTP middleware for metrics collection.
// The endpoint label is the chi route pattern to keep cardinality bounded.
func (mm *MetricsMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		mm.metrics.RequestsInFlight.Inc()
		defer mm.metrics.RequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}

		mm.metrics.RecordRequest(r.Method, endpoint, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// GRPCMetricsInterceptor creates gRPC interceptor for metrics collection
func (mm *MetricsMiddleware) GRPCMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		mm.metrics.RequestsInFlight.Inc()
		defer mm.metrics.RequestsInFlight.Dec()

		resp, err := handler(ctx, req)

		mm.metrics.RecordRequest("grpc", info.FullMethod, status.Code(err).String(), time.Since(start))

		return resp, err
	}
}

// WebSocketMetricsInterceptor tracks hosted sessions for the lifetime of the connection
func (mm *MetricsMiddleware) WebSocketMetricsInterceptor() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mm.metrics.SessionsActive.Inc()
			defer mm.metrics.SessionsActive.Dec()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
