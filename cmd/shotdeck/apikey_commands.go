package main

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"shotdeck/internal/studio"
)

func newAPIKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:     "apikey",
		Aliases: []string{"apikeys", "keys"},
		Short:   "Manage per-user provider API keys",
	}
	keyCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored keys (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				keys, err := svc.ListAPIKeys(cmd.Context(), ctx.user())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					rows = append(rows, []string{key.Provider, key.Masked, formatTime(key.UpdatedAt)})
				}
				return ctx.print(cmd, listing{
					value:   keys,
					headers: []string{"Provider", "Key", "Updated"},
					rows:    rows,
					empty:   "No API keys stored",
				})
			})
		},
	})
	keyCmd.AddCommand(&cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store a key for fal or openai; reads stdin when key is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 2 {
				key = args[1]
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					key = strings.TrimSpace(scanner.Text())
				}
				if key == "" {
					return errors.New("no key given on the command line or stdin")
				}
			}
			return ctx.withStudio(func(svc *studio.Service) error {
				masked, err := svc.SetAPIKey(cmd.Context(), ctx.user(), args[0], key)
				if err != nil {
					return err
				}
				return ctx.done(cmd, masked, "Stored %s key %s", masked.Provider, masked.Masked)
			})
		},
	})
	keyCmd.AddCommand(&cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				if err := svc.DeleteAPIKey(cmd.Context(), ctx.user(), args[0]); err != nil {
					return err
				}
				return ctx.done(cmd, map[string]string{"deleted": args[0]}, "Deleted %s key", args[0])
			})
		},
	})
	return keyCmd
}
