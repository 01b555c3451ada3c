package main

import (
	"github.com/spf13/cobra"

	"shotdeck/internal/store"
	"shotdeck/internal/studio"
)

func newGenerationCommand(ctx *commandContext) *cobra.Command {
	genCmd := &cobra.Command{
		Use:     "generation",
		Aliases: []string{"generations", "gen"},
		Short:   "Manage generated and imported media",
	}
	genCmd.AddCommand(newGenerationListCommand(ctx))
	genCmd.AddCommand(newGenerationShowCommand(ctx))
	genCmd.AddCommand(newGenerationAddCommand(ctx))
	genCmd.AddCommand(newGenerationImportCommand(ctx))
	genCmd.AddCommand(newGenerationDeleteCommand(ctx))
	return genCmd
}

func newGenerationListCommand(ctx *commandContext) *cobra.Command {
	var project, genType string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's generations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				gens, err := svc.ListGenerations(cmd.Context(), ctx.user(), projectID, genType, limit, offset)
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   gens,
					headers: []string{"ID", "Type", "Location", "Created"},
					rows:    generationRows(gens),
					empty:   "No generations",
				})
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	cmd.Flags().StringVar(&genType, "type", "", "Filter by image or video")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	return cmd
}

func newGenerationShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <generation-id>",
		Short: "Show one generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				gen, err := svc.GetGeneration(cmd.Context(), ctx.user(), args[0])
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   gen,
					headers: []string{"ID", "Type", "Location", "Created"},
					rows:    generationRows([]store.Generation{*gen}),
				})
			})
		},
	}
}

func newGenerationAddCommand(ctx *commandContext) *cobra.Command {
	var project, genType string
	cmd := &cobra.Command{
		Use:   "add <location>",
		Short: "Register an asset that already exists at a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				gen, err := svc.CreateGeneration(cmd.Context(), ctx.user(), studio.GenerationInput{
					ProjectID: projectID,
					Location:  args[0],
					Type:      genType,
				})
				if err != nil {
					return err
				}
				return ctx.done(cmd, gen, "Added %s generation %s", gen.Type, gen.ID)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	cmd.Flags().StringVar(&genType, "type", "", "image (default) or video")
	return cmd
}

func newGenerationImportCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Copy local files into the media store as generations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				imported := make([]store.Generation, 0, len(args))
				for _, path := range args {
					gen, err := svc.ImportGeneration(cmd.Context(), ctx.user(), projectID, path, nil)
					if err != nil {
						return err
					}
					imported = append(imported, *gen)
				}
				return ctx.print(cmd, listing{
					value:   imported,
					headers: []string{"ID", "Type", "Location", "Created"},
					rows:    generationRows(imported),
				})
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	return cmd
}

func newGenerationDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <generation-id>",
		Short: "Delete a generation and remove it from every shot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				if err := svc.DeleteGeneration(cmd.Context(), ctx.user(), args[0]); err != nil {
					return err
				}
				return ctx.done(cmd, map[string]string{"deleted": args[0]}, "Deleted generation %s", args[0])
			})
		},
	}
}
