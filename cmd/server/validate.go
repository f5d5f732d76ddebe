package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
	"github.com/FlooooowY/SteelMount-FormShield/internal/validator"
)

// errRejected makes the process exit non-zero for an invalid human submission
var errRejected = errors.New("submission rejected")

type validateConfig struct {
	file string
}

// NewValidateCmd creates the validate subcommand
func NewValidateCmd() *cobra.Command {
	cfg := &validateConfig{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a submission body with the server checks",
		Long: `Validate a JSON submission body with the configured honeypot, time
delay and challenge checks and print the verdict. Exits non-zero when
the submission is invalid and not a bot.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "-", "submission body (JSON), - for stdin")

	return cmd
}

func runValidate(cmd *cobra.Command, vc *validateConfig) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var data []byte
	if vc.file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(vc.file)
	}
	if err != nil {
		return fmt.Errorf("failed to read submission: %w", err)
	}

	body, err := validator.DecodeJSON(data)
	if err != nil {
		return fmt.Errorf("failed to decode submission: %w", err)
	}

	uc := usecase.NewSubmissionUsecase(usecase.Config{Validation: cfg.Validation}, challenge.NewDefaultRegistry(nil), nil, nil)
	verdict := uc.ValidateSubmission(cmd.Context(), usecase.SurfaceCLI, body)

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format verdict: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !verdict.Valid && !verdict.IsBot {
		return errRejected
	}
	return nil
}
