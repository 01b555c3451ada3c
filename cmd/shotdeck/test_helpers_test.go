package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("FAL_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	configPath := filepath.Join(base, "shotdeck.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
media_dir = %q
log_dir = %q

[server]
bind = "127.0.0.1:0"
default_user = "local"

[fal]
api_key = "test-fal"

[media]
mirror_outputs = false
`, filepath.Join(base, "data"), filepath.Join(base, "media"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return e.runWithInput(t, "", args...)
}

func (e *cliTestEnv) runWithInput(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("shotdeck %s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

func (e *cliTestEnv) mustJSON(t *testing.T, dst any, args ...string) {
	t.Helper()
	out := e.mustRun(t, append(args, "--json")...)
	if err := json.Unmarshal([]byte(out), dst); err != nil {
		t.Fatalf("decode %q output: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
