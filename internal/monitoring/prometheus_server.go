package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
)

// PrometheusServer serves /metrics and a health probe on its own port
type PrometheusServer struct {
	server      *http.Server
	port        int
	metricsPath string
	healthPath  string
	gatherer    prometheus.Gatherer
	metrics     *Metrics
}

// NewPrometheusServer creates a new Prometheus server
func NewPrometheusServer(port int, metricsPath, healthPath string, gatherer prometheus.Gatherer, metrics *Metrics) *PrometheusServer {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if healthPath == "" {
		healthPath = "/health"
	}
	return &PrometheusServer{
		port:        port,
		metricsPath: metricsPath,
		healthPath:  healthPath,
		gatherer:    gatherer,
		metrics:     metrics,
	}
}

// Handler returns the metrics mux
func (ps *PrometheusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(ps.metricsPath, promhttp.HandlerFor(ps.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc(ps.healthPath, ps.healthHandler)
	return mux
}

// Start starts the Prometheus server and the process metrics collector
func (ps *PrometheusServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", ps.port))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics port %d: %w", ps.port, err)
	}

	ps.server = &http.Server{
		Handler:           ps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go ps.collectSystemMetrics(ctx)

	go func() {
		if err := ps.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithComponent("metrics").WithError(err).Error("Prometheus server error")
		}
	}()

	logger.WithComponent("metrics").Infof("Prometheus server started on port %d", ps.port)
	return nil
}

// Stop stops the Prometheus server
func (ps *PrometheusServer) Stop(ctx context.Context) error {
	if ps.server != nil {
		return ps.server.Shutdown(ctx)
	}
	return nil
}

func (ps *PrometheusServer) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// collectSystemMetrics collects process metrics periodically
func (ps *PrometheusServer) collectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	ps.updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ps.updateSystemMetrics()
		}
	}
}

func (ps *PrometheusServer) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	ps.metrics.SetMemoryUsage(m.Alloc)
	ps.metrics.SetGoroutines(runtime.NumGoroutine())
}
