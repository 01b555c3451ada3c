package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shotdeck/internal/daemon"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			sent, message, err := daemon.SendTestNotification(cmd.Context(), ctx.configValue())
			if err != nil {
				return fmt.Errorf("%s: %w", message, err)
			}
			if !sent {
				return errors.New(message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}
