// Package server composes the HTTP, gRPC and metrics servers around one
// submission usecase.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/FlooooowY/SteelMount-FormShield/internal/api"
	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
	"github.com/FlooooowY/SteelMount-FormShield/internal/config"
	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
	"github.com/FlooooowY/SteelMount-FormShield/internal/monitoring"
	"github.com/FlooooowY/SteelMount-FormShield/internal/redis"
	grpctransport "github.com/FlooooowY/SteelMount-FormShield/internal/transport/grpc"
	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
	"github.com/FlooooowY/SteelMount-FormShield/internal/websocket"
)

// Server represents the FormShield service
type Server struct {
	config *config.Config
	log    *logrus.Entry

	usecase     usecase.SubmissionUsecase
	redisClient *redis.Client

	// HTTP: REST API and hosted sessions
	httpServer *http.Server
	handler    http.Handler
	sessions   *websocket.SessionService

	grpcServer *grpc.Server

	// Monitoring
	promRegistry     *prometheus.Registry
	metrics          *monitoring.Metrics
	prometheusServer *monitoring.PrometheusServer

	shutdownWG sync.WaitGroup
}

// New creates a new server instance. A configured but unreachable Redis
// degrades to configuration-only settings.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	srv := &Server{
		config:       cfg,
		log:          logger.WithComponent("server"),
		promRegistry: prometheus.NewRegistry(),
	}

	srv.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv.metrics = monitoring.NewMetricsWithRegistry(srv.promRegistry)

	var source usecase.SettingsSource
	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			srv.log.WithError(err).Warn("Failed to connect to Redis, using configured settings only")
		} else {
			srv.redisClient = client
			source = client.Settings()
		}
	}

	srv.usecase = usecase.NewSubmissionUsecase(usecase.Config{
		Validation:        cfg.Validation,
		Ambient:           cfg.AntiSpam.Settings,
		MinSubmissionTime: cfg.AntiSpam.MinSubmissionTime,
		MaxRandomDelay:    cfg.AntiSpam.MaxRandomDelay,
		ChallengeType:     cfg.AntiSpam.ChallengeType,
	}, challenge.NewDefaultRegistry(nil), source, srv.metrics)

	srv.sessions = websocket.NewSessionService()
	sessionHandler := websocket.NewHandler(srv.usecase, srv.sessions, srv.metrics, websocket.Options{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})

	checks := map[string]api.HealthCheckFunc{}
	if srv.redisClient != nil {
		checks["redis"] = srv.redisClient.Health
	}

	srv.handler = api.NewRouter(cfg, api.Dependencies{
		Usecase:      srv.usecase,
		Metrics:      srv.metrics,
		Sessions:     sessionHandler,
		SessionStats: srv.sessions.StatsHandler,
		HealthChecks: checks,
	})
	srv.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort)),
		Handler:      srv.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	srv.grpcServer = grpctransport.NewServer(srv.usecase, srv.metrics,
		grpc.MaxRecvMsgSize(4*1024*1024), // 4MB
		grpc.MaxSendMsgSize(4*1024*1024), // 4MB
	)

	if cfg.Monitoring.Enabled {
		srv.prometheusServer = monitoring.NewPrometheusServer(
			cfg.Monitoring.PrometheusPort,
			cfg.Monitoring.MetricsPath,
			cfg.Monitoring.HealthCheckPath,
			srv.promRegistry,
			srv.metrics,
		)
	}

	srv.log.WithFields(logrus.Fields{
		"http_port":    cfg.Server.HTTPPort,
		"grpc_port":    cfg.Server.GRPCPort,
		"metrics_port": cfg.Monitoring.PrometheusPort,
		"redis":        srv.redisClient != nil,
	}).Info("Server created")

	return srv, nil
}

// Start binds every listener and serves until ctx is cancelled or a server fails
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting server...")

	httpListener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener: %w", err)
	}

	grpcAddr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.GRPCPort))
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		httpListener.Close()
		return fmt.Errorf("failed to create gRPC listener: %w", err)
	}

	errCh := make(chan error, 2)

	s.shutdownWG.Add(1)
	go func() {
		defer s.shutdownWG.Done()

		s.log.Infof("Starting HTTP server on %s", httpListener.Addr())
		if err := s.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	s.shutdownWG.Add(1)
	go func() {
		defer s.shutdownWG.Done()

		s.log.Infof("Starting gRPC server on %s", grpcListener.Addr())
		if err := s.grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	if s.prometheusServer != nil {
		if err := s.prometheusServer.Start(ctx); err != nil {
			s.log.WithError(err).Error("Failed to start Prometheus server")
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping server...")

	// Stop gRPC server gracefully
	grpcDone := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(grpcDone)
	}()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if s.prometheusServer != nil {
		if err := s.prometheusServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("prometheus shutdown: %w", err))
		}
	}

	select {
	case <-grpcDone:
		s.log.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.log.Warn("Graceful stop timeout, forcing gRPC stop")
		s.grpcServer.Stop()
	}

	if s.redisClient != nil {
		s.log.WithFields(logrus.Fields(s.redisClient.GetStats())).Info("Redis pool stats")
		if err := s.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	// Wait for all goroutines to finish
	waitDone := make(chan struct{})
	go func() {
		s.shutdownWG.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		s.log.Info("All servers stopped")
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, some goroutines may still be running")
	}

	return errors.Join(errs...)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Usecase returns the submission usecase
func (s *Server) Usecase() usecase.SubmissionUsecase {
	return s.usecase
}

// Sessions returns the hosted session registry
func (s *Server) Sessions() *websocket.SessionService {
	return s.sessions
}

// Metrics returns the metrics instance
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Gatherer returns the private metrics registry
func (s *Server) Gatherer() prometheus.Gatherer {
	return s.promRegistry
}
