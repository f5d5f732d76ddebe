package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FlooooowY/SteelMount-FormShield/internal/challenge"
)

type challengeConfig struct {
	challengeType string
	showAnswer    bool
}

// NewChallengeCmd creates the challenge subcommand
func NewChallengeCmd() *cobra.Command {
	cfg := &challengeConfig{}

	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Print a generated human-verification challenge",
		Long:  `Print a challenge from the default registry (arithmetic or trivia).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChallenge(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.challengeType, "type", "t", "", "challenge type; empty picks one at random")
	cmd.Flags().BoolVar(&cfg.showAnswer, "answer", false, "include the expected answer")

	return cmd
}

func runChallenge(cmd *cobra.Command, cfg *challengeConfig) error {
	registry := challenge.NewDefaultRegistry(nil)

	ch, err := registry.Generate(cfg.challengeType)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, registry.ListTypes())
	}

	out := map[string]interface{}{
		"type":     ch.Type,
		"question": ch.Question,
	}
	if cfg.showAnswer {
		out["answer"] = ch.Answer
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format challenge: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
