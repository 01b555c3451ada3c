package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	MediaDir string `toml:"media_dir"`
	LogDir   string `toml:"log_dir"`
}

// Database selects the SQL dialect and connection string.
type Database struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// Server contains HTTP API settings.
type Server struct {
	Bind           string   `toml:"bind"`
	APIToken       string   `toml:"api_token"`
	JWTSecret      string   `toml:"jwt_secret"`
	DefaultUser    string   `toml:"default_user"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LLM contains chat completion connection settings used by prompt tooling.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Fal contains generation provider settings.
type Fal struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	ImageModel          string `toml:"image_model"`
	VideoModel          string `toml:"video_model"`
	UpscaleModel        string `toml:"upscale_model"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Media controls how provider outputs are stored.
type Media struct {
	MirrorOutputs          bool   `toml:"mirror_outputs"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	PublicPrefix           string `toml:"public_prefix"`
}

// Worker contains task processing timings.
type Worker struct {
	Enabled            bool `toml:"enabled"`
	Concurrency        int  `toml:"concurrency"`
	PollInterval       int  `toml:"poll_interval"`
	ErrorRetryInterval int  `toml:"error_retry_interval"`
	HeartbeatInterval  int  `toml:"heartbeat_interval"`
	HeartbeatTimeout   int  `toml:"heartbeat_timeout"`
	MaxAttempts        int  `toml:"max_attempts"`
}

// Queue configures the optional Redis broker. When RedisAddr is empty the worker
// polls the database instead.
type Queue struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Name          string `toml:"name"`
	SweepInterval int    `toml:"sweep_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	TaskCompleted  bool   `toml:"task_completed"`
	TaskFailed     bool   `toml:"task_failed"`
	QueueDrained   bool   `toml:"queue_drained"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shotdeck.
//
// Configuration sections by subsystem:
//   - Paths: data, media and log directories
//   - Database: sqlite or postgres connection
//   - Server: API bind address and authentication
//   - LLM: chat completion settings for prompt tooling
//   - Fal: generation provider models and polling
//   - Media: mirroring of provider outputs into MediaDir
//   - Worker: task polling, heartbeat and retry limits
//   - Queue: optional Redis broker for task dispatch
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Server        Server        `toml:"server"`
	LLM           LLM           `toml:"llm"`
	Fal           Fal           `toml:"fal"`
	Media         Media         `toml:"media"`
	Worker        Worker        `toml:"worker"`
	Queue         Queue         `toml:"queue"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files from the working directory and the config
// directory. Variables already present in the environment win.
func loadDotEnv(configDir string) {
	candidates := []string{".env"}
	if configDir != "" && configDir != "." {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shotdeck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, media and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.MediaDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabaseDSN returns the connection string for the configured driver. SQLite
// defaults to a file inside the data directory.
func (c *Config) DatabaseDSN() string {
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn
	}
	if c.Database.Driver == DriverSQLite {
		return filepath.Join(c.Paths.DataDir, "shotdeck.db")
	}
	return ""
}

// LockPath returns the single-instance lock file used by the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "shotdeck.lock")
}

// BrokerEnabled reports whether tasks are dispatched through Redis.
func (c *Config) BrokerEnabled() bool {
	return strings.TrimSpace(c.Queue.RedisAddr) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
