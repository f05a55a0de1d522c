package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"evenkeel/internal/daemon"
)

func newWatchCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the normalization daemon",
		Long:  "Scans the library once, then watches the roots and normalizes new files as they settle. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.daemonLogger()
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return d.Run(ctx)
		},
	}
}
