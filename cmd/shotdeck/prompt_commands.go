package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shotdeck/internal/prompts"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	promptCmd := &cobra.Command{
		Use:     "prompt",
		Aliases: []string{"prompts"},
		Short:   "Draft, edit and label image prompts with the configured LLM",
	}
	promptCmd.AddCommand(newPromptGenerateCommand(ctx))
	promptCmd.AddCommand(newPromptEditCommand(ctx))
	promptCmd.AddCommand(newPromptSummarizeCommand(ctx))
	return promptCmd
}

func newPromptGenerateCommand(ctx *commandContext) *cobra.Command {
	var req prompts.GenerateRequest
	var summaries bool
	cmd := &cobra.Command{
		Use:   "generate <overall description>",
		Short: "Draft a batch of prompts for a scene",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Overall = strings.Join(args, " ")
			return ctx.withPrompts(func(svc *prompts.Service) error {
				if summaries {
					out, err := svc.GenerateWithSummaries(cmd.Context(), ctx.user(), req)
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(out))
					for i, p := range out {
						rows = append(rows, []string{fmt.Sprint(i + 1), p.Summary, p.Text})
					}
					return ctx.print(cmd, listing{value: out, headers: []string{"#", "Summary", "Prompt"}, rows: rows, aligns: []columnAlignment{alignRight}})
				}
				out, err := svc.Generate(cmd.Context(), ctx.user(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"prompts": out})
				}
				for _, p := range out {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&req.Count, "count", "n", 0, "Number of prompts (default 4)")
	cmd.Flags().StringVar(&req.Rules, "rules", "", "Extra constraints for every prompt")
	cmd.Flags().StringArrayVar(&req.Existing, "existing", nil, "Prompts to continue from (repeatable)")
	cmd.Flags().Float64Var(&req.Temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().BoolVar(&summaries, "summaries", false, "Add a short label to every prompt")
	return cmd
}

func newPromptEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <prompt> <instructions>",
		Short: "Revise one prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPrompts(func(svc *prompts.Service) error {
				out, err := svc.Edit(cmd.Context(), ctx.user(), prompts.EditRequest{Prompt: args[0], Instructions: args[1]})
				if err != nil {
					return err
				}
				return ctx.done(cmd, map[string]string{"prompt": out}, "%s", out)
			})
		},
	}
}

func newPromptSummarizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <prompt>",
		Short: "Produce a short label for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPrompts(func(svc *prompts.Service) error {
				out, err := svc.Summarize(cmd.Context(), ctx.user(), args[0])
				if err != nil {
					return err
				}
				return ctx.done(cmd, map[string]string{"summary": out}, "%s", out)
			})
		},
	}
}
