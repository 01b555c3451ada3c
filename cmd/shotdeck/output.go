package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shotdeck/internal/store"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render() + "\n"
}

// listing is a result that renders either as JSON or as a table.
type listing struct {
	value   any
	headers []string
	rows    [][]string
	aligns  []columnAlignment
	empty   string
}

func (c *commandContext) print(cmd *cobra.Command, l listing) error {
	if c.jsonOutput() {
		return writeJSON(cmd, l.value)
	}
	if len(l.rows) == 0 && l.empty != "" {
		fmt.Fprintln(cmd.OutOrStdout(), l.empty)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(l.headers, l.rows, l.aligns))
	return nil
}

// done prints a one-line confirmation, or value as JSON.
func (c *commandContext) done(cmd *cobra.Command, value any, format string, args ...any) error {
	if c.jsonOutput() {
		return writeJSON(cmd, value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	return nil
}

func formatTime(ts store.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}

func taskTypeLabel(taskType string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(taskType, "_", " "))
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func projectRows(projects []store.Project, selected string) [][]string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		marker := ""
		if p.ID == selected {
			marker = "*"
		}
		rows = append(rows, []string{marker, p.ID, p.Name, p.AspectRatio, formatTime(p.CreatedAt)})
	}
	return rows
}

func shotRows(shots []store.Shot) [][]string {
	rows := make([][]string, 0, len(shots))
	for _, s := range shots {
		rows = append(rows, []string{s.ID, s.Name, fmt.Sprint(len(s.Generations)), formatTime(s.UpdatedAt)})
	}
	return rows
}

func shotEntryRows(shot *store.Shot) [][]string {
	rows := make([][]string, 0, len(shot.Generations))
	for _, e := range shot.Generations {
		rows = append(rows, []string{fmt.Sprint(e.Position), e.ID, e.GenerationID, string(e.Type), truncate(e.Location, 60)})
	}
	return rows
}

func generationRows(gens []store.Generation) [][]string {
	rows := make([][]string, 0, len(gens))
	for _, g := range gens {
		rows = append(rows, []string{g.ID, string(g.Type), truncate(g.Location, 60), formatTime(g.CreatedAt)})
	}
	return rows
}

func taskRows(tasks []store.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		detail := t.OutputLocation
		if t.ErrorMessage != "" {
			detail = t.ErrorMessage
		}
		rows = append(rows, []string{t.ID, taskTypeLabel(t.TaskType), string(t.Status), fmt.Sprint(t.Attempts), truncate(detail, 50)})
	}
	return rows
}

func countRows(counts map[store.Status]int) [][]string {
	rows := make([][]string, 0, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		if count := counts[status]; count > 0 {
			rows = append(rows, []string{string(status), fmt.Sprint(count)})
		}
	}
	return rows
}
