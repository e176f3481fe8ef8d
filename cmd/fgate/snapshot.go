package main

import (
	"github.com/spf13/cobra"

	"github.com/CallMeMhz/feature-gating/internal/config"
	"github.com/CallMeMhz/feature-gating/pkg/viewer"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapshot",
		Short:         "Inspect snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(snapshotViewCmd())
	return cmd
}

func snapshotViewCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "view <id>",
		Short: "Print a snapshot document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.Viewer.BaseURL = baseURL
			}
			log := newLogger(cfg.App)
			v := viewer.NewFromConfig(cfg.Viewer, viewer.WriterOpener{W: cmd.OutOrStdout()}, viewer.WithLogger(log))
			return v.View(cmd.Context(), args[0])
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server base URL (defaults to VIEWER_BASE_URL)")
	return cmd
}
