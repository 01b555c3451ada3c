package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var userFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &userFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "shotdeck",
		Short:         "Shotdeck storyboard studio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "Act as this user (defaults to server.default_user)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of tables")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newProjectCommand(ctx))
	rootCmd.AddCommand(newShotCommand(ctx))
	rootCmd.AddCommand(newGenerationCommand(ctx))
	rootCmd.AddCommand(newTaskCommand(ctx))
	rootCmd.AddCommand(newAPIKeyCommand(ctx))
	rootCmd.AddCommand(newPromptCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
