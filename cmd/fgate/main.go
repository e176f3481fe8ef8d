// Command fgate runs the feature-gating UI server and inspects snapshots.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CallMeMhz/feature-gating/internal/config"
	"github.com/CallMeMhz/feature-gating/pkg/environment"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/requestid"
)

// Set at build time.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// rootCmd reports errors itself; usage text is printed only for --help.
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fgate",
		Short:         "Feature gating UI runtime",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), snapshotCmd())
	return root
}

// newLogger builds the process logger from the app config and makes it the
// slog default.
func newLogger(cfg config.App) *slog.Logger {
	env := cfg.Environment()
	opts := []logger.Option{
		logger.WithEnvironment(env, cfg.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor(), environment.LoggerExtractor()),
	}
	if cfg.LogLevel != "" && env != environment.Development {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)
	return log
}
