package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
	"github.com/anisahjamin/CPC357-Assignment2/internal/logging"
)

const appName = "raintool"

var version = "dev"

type cliContextKey struct{}

// cli carries what every subcommand needs, built once in PersistentPreRunE.
type cli struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Operator tool for the rain sensor pipeline",
		Long:          "raintool migrates the SQLite store, publishes test or simulated readings and dumps stored documents.\nIt reads the same environment (and .env file) as the ingestor and dashboard.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg, version, appName)
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, &cli{cfg: cfg, logger: logger}))
			return nil
		},
	}
	root.AddCommand(newMigrateCmd(), newPublishCmd(), newSimulateCmd(), newDumpCmd())
	return root
}

func fromCmd(cmd *cobra.Command) *cli {
	return cmd.Context().Value(cliContextKey{}).(*cli)
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), d)
}
