package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
	"github.com/FlooooowY/SteelMount-FormShield/internal/server"
)

// NewServeCmd creates the serve subcommand
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, gRPC and metrics servers",
		Long: `Start the FormShield servers: the REST API with the protected submit
endpoint and hosted form sessions, the gRPC FormShield service and the
Prometheus metrics endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.WithComponent("main")
	log.Info("Starting FormShield")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serveErr := srv.Start(ctx)
	if serveErr != nil {
		log.WithError(serveErr).Error("Server error")
	} else {
		log.Info("Shutting down gracefully...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	log.Info("Server stopped gracefully")
	return serveErr
}
