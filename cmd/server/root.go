package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FlooooowY/SteelMount-FormShield/internal/config"
	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
)

// Global flags available to all subcommands
var configFile string

// NewRootCmd creates the root command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formshield",
		Short: "FormShield - invisible anti-spam for web forms",
		Long: `FormShield validates form submissions with a honeypot field, a minimum
fill time and human-verification challenges. It serves the validators
over HTTP, gRPC and hosted WebSocket form sessions.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewChallengeCmd())
	cmd.AddCommand(NewSettingsCmd())

	return cmd
}

// loadConfig loads the configuration and initialises the process logger.
// Tool commands log to stderr so stdout carries only their output.
func loadConfig(toolCommand bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Monitoring.Logging
	if toolCommand && (logCfg.Output == "" || strings.EqualFold(logCfg.Output, "stdout")) {
		logCfg.Output = "stderr"
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}

	return cfg, nil
}
