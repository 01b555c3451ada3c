package main

import (
	"github.com/spf13/cobra"

	"shotdeck/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the task worker unless disabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
				API:      true,
				Worker:   cfg.Worker.Enabled && !noWorker,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Serve the API without processing tasks")
	return cmd
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued tasks without serving the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel, Worker: true})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}
