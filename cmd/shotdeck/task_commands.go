package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shotdeck/internal/store"
	"shotdeck/internal/studio"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Queue and inspect generation tasks",
	}
	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	taskCmd.AddCommand(newTaskCreateCommand(ctx))
	taskCmd.AddCommand(newTaskCancelCommand(ctx))
	taskCmd.AddCommand(newTaskRetryCommand(ctx))
	taskCmd.AddCommand(newTaskCancelPendingCommand(ctx))
	taskCmd.AddCommand(newTaskCountsCommand(ctx))
	return taskCmd
}

var taskHeaders = []string{"ID", "Type", "Status", "Attempts", "Output / Error"}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var project string
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				tasks, err := svc.ListTasks(cmd.Context(), ctx.user(), projectID, statuses...)
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   tasks,
					headers: taskHeaders,
					rows:    taskRows(tasks),
					aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
					empty:   "No tasks",
				})
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, in_progress, completed, cancelled, failed)")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task with its params",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				task, err := svc.GetTask(cmd.Context(), ctx.user(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, task)
				}
				params, _ := json.Marshal(task.Params)
				rows := [][]string{
					{"ID", task.ID},
					{"Type", taskTypeLabel(task.TaskType)},
					{"Status", string(task.Status)},
					{"Attempts", fmt.Sprint(task.Attempts)},
					{"Depends on", strings.Join(task.DependantOn, ", ")},
					{"Params", string(params)},
					{"Output", task.OutputLocation},
					{"Error", task.ErrorMessage},
					{"Created", formatTime(task.CreatedAt)},
				}
				return ctx.print(cmd, listing{headers: []string{"Field", "Value"}, rows: rows})
			})
		},
	}
}

// parseParams merges a JSON object with key=value pairs. Values that parse as
// JSON keep their type; anything else is a string.
func parseParams(raw string, pairs []string) (store.JSONObject, error) {
	params := store.JSONObject{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("parse --params: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("parse --param %q: expected key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			params[strings.TrimSpace(key)] = decoded
		} else {
			params[strings.TrimSpace(key)] = value
		}
	}
	return params, nil
}

func newTaskCreateCommand(ctx *commandContext) *cobra.Command {
	var project, raw string
	var pairs, deps []string
	cmd := &cobra.Command{
		Use:   "create <task-type>",
		Short: "Queue a task (" + strings.Join(store.TaskTypes(), ", ") + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(raw, pairs)
			if err != nil {
				return err
			}
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				task, err := svc.CreateTask(cmd.Context(), ctx.user(), studio.TaskInput{
					ProjectID:   projectID,
					TaskType:    args[0],
					Params:      params,
					DependantOn: deps,
				})
				if err != nil {
					return err
				}
				return ctx.done(cmd, task, "Queued %s task %s", taskTypeLabel(task.TaskType), task.ID)
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	cmd.Flags().StringVar(&raw, "params", "", "Task params as a JSON object")
	cmd.Flags().StringArrayVar(&pairs, "param", nil, "Task param as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&deps, "depends-on", nil, "Task ids that must complete first")
	return cmd
}

func newTaskCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a pending or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				task, err := svc.CancelTask(cmd.Context(), ctx.user(), args[0])
				if err != nil {
					return err
				}
				return ctx.done(cmd, task, "Task %s is %s", task.ID, task.Status)
			})
		},
	}
}

func newTaskRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Requeue a failed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				task, err := svc.RetryTask(cmd.Context(), ctx.user(), args[0])
				if err != nil {
					return err
				}
				return ctx.done(cmd, task, "Task %s is %s", task.ID, task.Status)
			})
		},
	}
}

func newTaskCancelPendingCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "cancel-pending",
		Short: "Cancel every pending task in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				ids, err := svc.CancelPendingTasks(cmd.Context(), ctx.user(), projectID)
				if err != nil {
					return err
				}
				return ctx.done(cmd, map[string]any{"cancelled": ids}, "Cancelled %d pending task(s)", len(ids))
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	return cmd
}

func newTaskCountsCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Count a project's tasks by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(svc *studio.Service) error {
				projectID, err := ctx.resolveProject(cmd.Context(), svc, project)
				if err != nil {
					return err
				}
				counts, err := svc.TaskCounts(cmd.Context(), ctx.user(), projectID)
				if err != nil {
					return err
				}
				return ctx.print(cmd, listing{
					value:   counts,
					headers: []string{"Status", "Count"},
					rows:    countRows(counts),
					aligns:  []columnAlignment{alignLeft, alignRight},
					empty:   "No tasks",
				})
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (defaults to the selected project)")
	return cmd
}
