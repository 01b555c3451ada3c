package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"shotdeck/internal/studio"
)

// resolveProject returns flagValue or, when empty, the workspace's selected
// project.
func (c *commandContext) resolveProject(ctx context.Context, svc *studio.Service, flagValue string) (string, error) {
	if id := strings.TrimSpace(flagValue); id != "" {
		return id, nil
	}
	ws, err := svc.GetWorkspace(ctx, c.user())
	if err != nil {
		return "", err
	}
	if ws.SelectedProjectID == "" {
		return "", errors.New("no project selected; pass --project or run `shotdeck project select`")
	}
	return ws.SelectedProjectID, nil
}

func newShotCommand(ctx *commandContext) *cobra.Command {
	shotCmd := &cobra.Command{
		Use:     "shot",
		Aliases: []string{"shots"},
		Short:   "Manage shots and their generation order",
	}
	shotCmd.AddCommand(newShotListCommand(ctx))
	shotCmd.AddCommand(newShotShowCommand(ctx))
	shotCmd.AddCommand(newShotCreateCommand(ctx))
	shotCmd.AddCommand(newShotRenameCommand(ctx))
	shotCmd.AddCommand(newShotDeleteCommand(ctx))
	shotCmd.AddCommand(newShotAddCommand(ctx))
	shotCmd.AddCommand(newShotRemoveCommand(ctx))
	shotCmd.AddCommand(newShotReorderCommand(ctx))
	shotCmd.AddCommand(newShotDuplicateCommand(ctx))
	return shotCmd
}

func newShotListCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's shots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				shots, err := svc.ListShots(cmd.Context(), ctx.user(), projectID)
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   shots,
					headers: []string{"ID", "Name", "Entries", "Updated"},
					rows:    shotRows(shots),
					aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
					empty:   "No shots",
				})
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	return cmd
}

func newShotShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <shot-id>",
		Short: "Show a shot's entries in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				shot, err := svc.GetShot(cmd.Context(), ctx.user(), args[0])
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   shot,
					headers: []string{"Pos", "Entry", "Generation", "Type", "Location"},
					rows:    shotEntryRows(shot),
					aligns:  []columnAlignment{alignRight},
					empty:   "Shot " + shot.Name + " is empty",
				})
			})
		},
	}
}

func newShotCreateCommand(ctx *commandContext) *cobra.Command {
	var project string
	var generations []string
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a shot, optionally seeded with generations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				input := studio.ShotInput{ProjectID: projectID, GenerationIDs: generations}
				if len(args) == 1 {
					input.Name = args[0]
				}
				shot, err := svc.CreateShot(cmd.Context(), ctx.user(), input)
				if err != nil {
					return err
				}
				return ctx.done(cmd, shot, "Created shot %s (%s)", shot.Name, shot.ID)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	cmd.Flags().StringSliceVarP(&generations, "generation", "g", nil, "Generation ids to add in order")
	return cmd
}

func newShotRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <shot-id> <name>",
		Short: "Rename a shot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				shot, err := svc.RenameShot(cmd.Context(), ctx.user(), args[0], args[1])
				if err != nil {
					return err
				}
				return ctx.done(cmd, shot, "Renamed shot %s to %s", shot.ID, shot.Name)
			})
		},
	}
}

func newShotDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <shot-id>",
		Short: "Delete a shot; its generations are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				if err := svc.DeleteShot(cmd.Context(), ctx.user(), args[0]); err != nil {
					return err
				}
				return ctx.done(cmd, map[string]string{"deleted": args[0]}, "Deleted shot %s", args[0])
			})
		},
	}
}

func newShotAddCommand(ctx *commandContext) *cobra.Command {
	var position int
	cmd := &cobra.Command{
		Use:   "add <shot-id> <generation-id>",
		Short: "Add a generation to a shot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pos *int
			if cmd.Flags().Changed("position") {
				pos = &position
			}
			return ctx.withStudio(func(svc *studio.Service) error {
				shot, err := svc.AddGenerationToShot(cmd.Context(), ctx.user(), args[0], args[1], pos)
				if err != nil {
					return err
				}
				return ctx.done(cmd, shot, "Shot %s now has %d entries", shot.Name, len(shot.Generations))
			})
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "Insert at this position instead of appending")
	return cmd
}

func newShotRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <shot-id> <entry-id>",
		Short: "Remove one entry from a shot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				shot, err := svc.RemoveShotGeneration(cmd.Context(), ctx.user(), args[0], args[1])
				if err != nil {
					return err
				}
				return ctx.done(cmd, shot, "Shot %s now has %d entries", shot.Name, len(shot.Generations))
			})
		},
	}
}

func newShotReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <shot-id> <entry-id>...",
		Short: "Apply a full ordering of a shot's entries",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				shot, err := svc.ReorderShot(cmd.Context(), ctx.user(), args[0], args[1:])
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   shot,
					headers: []string{"Pos", "Entry", "Generation", "Type", "Location"},
					rows:    shotEntryRows(shot),
					aligns:  []columnAlignment{alignRight},
				})
			})
		},
	}
}

func newShotDuplicateCommand(ctx *commandContext) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "duplicate <shot-id>",
		Short: "Copy a shot with its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				shot, err := svc.DuplicateShot(cmd.Context(), ctx.user(), args[0], name)
				if err != nil {
					return err
				}
				return ctx.done(cmd, shot, "Created shot %s (%s)", shot.Name, shot.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name for the copy")
	return cmd
}
