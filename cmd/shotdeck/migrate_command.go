package main

import (
	"github.com/spf13/cobra"

	"shotdeck/internal/store"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Connect(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := st.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if !result.Applied {
				return ctx.done(cmd, result, "Schema already at version %d", result.To)
			}
			return ctx.done(cmd, result, "Migrated %s schema from version %d to %d", st.Driver(), result.From, result.To)
		},
	}
}
