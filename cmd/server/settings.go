package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
	"github.com/FlooooowY/SteelMount-FormShield/internal/redis"
	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
)

// NewSettingsCmd creates the settings subcommand
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or publish the ambient anti-spam settings",
		Long: `Inspect the ambient settings every form starts from, or publish the
configured anti_spam.settings layer to the shared Redis hash.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective ambient settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSettingsShow(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Publish the configured settings to the Redis hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSettingsPush(cmd)
		},
	})

	return cmd
}

func runSettingsShow(cmd *cobra.Command) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var source usecase.SettingsSource
	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(cmd.Context(), &cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		source = client.Settings()
	}

	uc := usecase.NewSubmissionUsecase(usecase.Config{
		Validation: cfg.Validation,
		Ambient:    cfg.AntiSpam.Settings,
	}, challenge.NewDefaultRegistry(nil), source, nil)

	s, err := uc.AmbientSettings(cmd.Context())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format settings: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runSettingsPush(cmd *cobra.Command) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("redis is not configured (set redis.url or REDIS_URL)")
	}

	client, err := redis.NewClient(cmd.Context(), &cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	store := client.Settings()
	if err := store.Publish(cmd.Context(), cfg.AntiSpam.Settings); err != nil {
		return err
	}

	fields := cfg.AntiSpam.Settings.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(cmd.OutOrStdout(), "Published %d field(s) to %s\n", len(keys), store.Key())
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s=%s\n", k, fields[k])
	}
	return nil
}
