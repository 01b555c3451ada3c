package main

import (
	"github.com/spf13/cobra"

	"shotdeck/internal/store"
	"shotdeck/internal/studio"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects",
	}
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectUpdateCommand(ctx))
	projectCmd.AddCommand(newProjectDeleteCommand(ctx))
	projectCmd.AddCommand(newProjectSelectCommand(ctx))
	return projectCmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projects, err := svc.ListProjects(cmd.Context(), ctx.user())
				if err != nil {
					return err
				}
				ws, err := svc.GetWorkspace(cmd.Context(), ctx.user())
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   projects,
					headers: []string{"", "ID", "Name", "Aspect", "Created"},
					rows:    projectRows(projects, ws.SelectedProjectID),
					empty:   "No projects",
				})
			})
		},
	}
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var aspect string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				project, err := svc.CreateProject(cmd.Context(), ctx.user(), studio.ProjectInput{Name: args[0], AspectRatio: aspect})
				if err != nil {
					return err
				}
				return ctx.done(cmd, project, "Created project %s (%s)", project.Name, project.ID)
			})
		},
	}
	cmd.Flags().StringVar(&aspect, "aspect", "", "Aspect ratio (default "+store.DefaultAspectRatio+")")
	return cmd
}

func newProjectUpdateCommand(ctx *commandContext) *cobra.Command {
	var name, aspect string
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Rename a project or change its aspect ratio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update store.ProjectUpdate
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("aspect") {
				update.AspectRatio = &aspect
			}
			return ctx.withStudio(func(svc *studio.Service) error {
				project, err := svc.UpdateProject(cmd.Context(), ctx.user(), args[0], update)
				if err != nil {
					return err
				}
				return ctx.done(cmd, project, "Updated project %s", project.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New project name")
	cmd.Flags().StringVar(&aspect, "aspect", "", "New aspect ratio")
	return cmd
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project with its shots, generations and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				if err := svc.DeleteProject(cmd.Context(), ctx.user(), args[0]); err != nil {
					return err
				}
				return ctx.done(cmd, map[string]string{"deleted": args[0]}, "Deleted project %s", args[0])
			})
		},
	}
}

func newProjectSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select <project-id>",
		Short: "Select the workspace project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				ws, err := svc.SelectProject(cmd.Context(), ctx.user(), args[0])
				if err != nil {
					return err
				}
				return ctx.done(cmd, ws, "Selected project %s", ws.SelectedProjectID)
			})
		},
	}
}
