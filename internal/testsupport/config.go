package testsupport

import (
	"path/filepath"
	"testing"

	"shotdeck/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Driver = config.DriverSQLite
	cfgVal.Database.DSN = ""
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Fal.APIKey = "test-fal"
	cfgVal.Fal.PollIntervalSeconds = 1
	cfgVal.LLM.APIKey = "test-llm"
	cfgVal.Media.MirrorOutputs = false
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Queue.RedisAddr = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFalServer points the fal client at a test server.
func WithFalServer(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fal.BaseURL = url
	}
}

// WithLLMServer points the chat completion client at a test server.
func WithLLMServer(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithNtfyTopic enables notifications against a test server.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
	}
}

// WithMirroredMedia enables downloading provider outputs into MediaDir.
func WithMirroredMedia() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.MirrorOutputs = true
	}
}

// WithAPIToken requires a static bearer token on the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithJWTSecret switches the HTTP API to HS256 bearer tokens.
func WithJWTSecret(secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.JWTSecret = secret
	}
}

// WithDatabase overrides the database driver and DSN.
func WithDatabase(driver, dsn string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.Driver = driver
		b.cfg.Database.DSN = dsn
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
