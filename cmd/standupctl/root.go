package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/standup/backend/internal/config"
)

// app carries what every subcommand needs. It is filled in before the
// subcommand runs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "standupctl",
		Short:         "Operate the stand-up assistant: participants, tokens, speech and migrations",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			a.cfg = cfg
			a.logger = cfg.Log.NewLogger(cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.AddCommand(
		newMigrateCmd(a),
		newParticipantsCmd(a),
		newRoomCmd(a),
		newTokenCmd(a),
		newSpeakCmd(a),
		newTranscribeCmd(a),
	)

	return rootCmd
}
