package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shotdeck/internal/config"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"FAL_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "DATABASE_URL", "REDIS_ADDR", "SHOTDECK_API_TOKEN", "SHOTDECK_JWT_SECRET"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearProviderEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "shotdeck")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.MediaDir != filepath.Join(wantData, "media") {
		t.Fatalf("unexpected media dir: %q", cfg.Paths.MediaDir)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.DatabaseDSN() != filepath.Join(wantData, "shotdeck.db") {
		t.Fatalf("unexpected sqlite dsn: %q", cfg.DatabaseDSN())
	}
	if cfg.Server.Bind != "127.0.0.1:7788" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Server.DefaultUser != "local" {
		t.Fatalf("unexpected default user: %q", cfg.Server.DefaultUser)
	}
	if cfg.BrokerEnabled() {
		t.Fatal("expected broker disabled by default")
	}
	if !cfg.Media.MirrorOutputs {
		t.Fatal("expected output mirroring enabled by default")
	}
	if cfg.Worker.HeartbeatInterval != config.Default().Worker.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Worker.HeartbeatInterval)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearProviderEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shotdeck.toml")

	custom := struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Fal struct {
			APIKey  string `toml:"api_key"`
			BaseURL string `toml:"base_url"`
		} `toml:"fal"`
		Worker struct {
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"worker"`
		Media struct {
			PublicPrefix string `toml:"public_prefix"`
		} `toml:"media"`
	}{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Fal.APIKey = "file-key"
	custom.Fal.BaseURL = "http://fal.local/"
	custom.Worker.HeartbeatInterval = 5
	custom.Worker.HeartbeatTimeout = 30
	custom.Media.PublicPrefix = "files/"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != custom.Paths.DataDir {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Fal.APIKey != "file-key" {
		t.Fatalf("expected fal key from file, got %q", cfg.Fal.APIKey)
	}
	if cfg.Fal.BaseURL != "http://fal.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Fal.BaseURL)
	}
	if cfg.Media.PublicPrefix != "/files" {
		t.Fatalf("expected normalized public prefix, got %q", cfg.Media.PublicPrefix)
	}
	if cfg.Worker.HeartbeatTimeout != 30 {
		t.Fatalf("unexpected heartbeat timeout: %d", cfg.Worker.HeartbeatTimeout)
	}
}

func TestEnvFallbacksFillMissingKeys(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FAL_KEY", "env-fal")
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/shotdeck?sslmode=disable")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Fal.APIKey != "env-fal" {
		t.Fatalf("expected fal key from env, got %q", cfg.Fal.APIKey)
	}
	if cfg.LLM.APIKey != "env-openai" {
		t.Fatalf("expected llm key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		t.Fatalf("expected DATABASE_URL to select postgres, got %q", cfg.Database.Driver)
	}
	if !cfg.BrokerEnabled() {
		t.Fatal("expected REDIS_ADDR to enable the broker")
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearProviderEnv(t)
	tempDir := t.TempDir()
	t.Setenv("FAL_KEY", "from-env")
	configPath := filepath.Join(tempDir, "shotdeck.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\ndata_dir = \""+filepath.Join(tempDir, "data")+"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("FAL_KEY=from-dotenv\nSHOTDECK_API_TOKEN=dot-token\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("SHOTDECK_API_TOKEN", "")
	_ = os.Unsetenv("SHOTDECK_API_TOKEN")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Fal.APIKey != "from-env" {
		t.Fatalf("expected environment to win, got %q", cfg.Fal.APIKey)
	}
	if cfg.Server.APIToken != "dot-token" {
		t.Fatalf("expected token from .env, got %q", cfg.Server.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[worker]") {
		t.Fatal("expected worker section in sample config")
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample config must parse: %v", err)
	}
	if cfg.Server.Bind == "" {
		t.Fatal("expected sample to set server.bind")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *config.Config) { c.Database.Driver = config.DriverPostgres }, "database.dsn"},
		{"short jwt secret", func(c *config.Config) { c.Server.JWTSecret = "short" }, "jwt_secret"},
		{"heartbeat timeout", func(c *config.Config) { c.Worker.HeartbeatTimeout = c.Worker.HeartbeatInterval }, "heartbeat_timeout"},
		{"poll interval", func(c *config.Config) { c.Worker.PollInterval = 0 }, "worker.poll_interval"},
		{"too many workers", func(c *config.Config) { c.Worker.Concurrency = 64 }, "worker.concurrency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
