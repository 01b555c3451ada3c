package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shotdeck/internal/config"
	"shotdeck/internal/store"
)

type statusReport struct {
	ServerRunning bool                 `json:"serverRunning"`
	APIReachable  bool                 `json:"apiReachable"`
	Address       string               `json:"address"`
	Database      string               `json:"database"`
	SchemaVersion uint                 `json:"schemaVersion"`
	SchemaDirty   bool                 `json:"schemaDirty"`
	Broker        string               `json:"broker"`
	TaskCounts    map[store.Status]int `json:"taskCounts"`
	FalKey        bool                 `json:"falKeyConfigured"`
	LLMKey        bool                 `json:"llmKeyConfigured"`
	Notifications bool                 `json:"notifications"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server, database and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := collectStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
}

func collectStatus(ctx context.Context, cfg *config.Config) (statusReport, error) {
	report := statusReport{
		ServerRunning: serverHoldsLock(cfg),
		Address:       cfg.Server.Bind,
		Database:      cfg.Database.Driver,
		Broker:        "database polling",
		FalKey:        strings.TrimSpace(cfg.Fal.APIKey) != "",
		LLMKey:        strings.TrimSpace(cfg.LLM.APIKey) != "",
		Notifications: strings.TrimSpace(cfg.Notifications.NtfyTopic) != "",
	}
	if cfg.BrokerEnabled() {
		report.Broker = "redis " + cfg.Queue.RedisAddr
	}
	if report.ServerRunning {
		report.APIReachable = probeHealth(ctx, cfg.Server.Bind)
	}

	st, err := store.Connect(cfg)
	if err != nil {
		return report, err
	}
	defer st.Close()
	// A database that was never migrated has no schema_migrations table.
	if report.SchemaVersion, report.SchemaDirty, err = st.SchemaVersion(ctx); err != nil {
		report.SchemaVersion = 0
	}
	if report.SchemaVersion > 0 && !report.SchemaDirty {
		if report.TaskCounts, err = st.Stats(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// serverHoldsLock reports whether another process owns the server lock.
func serverHoldsLock(cfg *config.Config) bool {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

func probeHealth(ctx context.Context, bind string) bool {
	host := bind
	if strings.HasPrefix(host, ":") || strings.HasPrefix(host, "0.0.0.0:") {
		host = "127.0.0.1:" + host[strings.LastIndex(host, ":")+1:]
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+host+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func printStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	lines := renderSectionHeader("Server", colorize)

	switch {
	case report.ServerRunning && report.APIReachable:
		lines = append(lines, renderStatusLine("Server", statusOK, "running at "+report.Address, colorize))
	case report.ServerRunning:
		lines = append(lines, renderStatusLine("Server", statusWarn, "lock held but "+report.Address+" is not answering", colorize))
	default:
		lines = append(lines, renderStatusLine("Server", statusInfo, "not running", colorize))
	}
	lines = append(lines, renderStatusLine("Dispatch", statusInfo, report.Broker, colorize))

	schemaKind := statusOK
	schemaText := fmt.Sprintf("%s, schema v%d", report.Database, report.SchemaVersion)
	switch {
	case report.SchemaDirty:
		schemaKind, schemaText = statusError, schemaText+" (dirty)"
	case report.SchemaVersion == 0:
		schemaKind, schemaText = statusWarn, report.Database+", not migrated"
	}
	lines = append(lines, renderStatusLine("Database", schemaKind, schemaText, colorize))
	lines = append(lines, renderStatusLine("fal key", keyKind(report.FalKey), yesNo(report.FalKey), colorize))
	lines = append(lines, renderStatusLine("LLM key", keyKind(report.LLMKey), yesNo(report.LLMKey), colorize))
	lines = append(lines, renderStatusLine("Notifications", statusInfo, yesNo(report.Notifications), colorize))

	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if rows := countRows(report.TaskCounts); len(rows) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

func keyKind(present bool) statusKind {
	if present {
		return statusOK
	}
	return statusWarn
}
