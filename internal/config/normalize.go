package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeServer()
	c.normalizeLLM()
	c.normalizeFal()
	c.normalizeMedia()
	c.normalizeWorker()
	c.normalizeQueue()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		c.Paths.MediaDir = defaultMediaDir
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pg":
		c.Database.Driver = DriverPostgres
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok && strings.TrimSpace(value) != "" {
			c.Database.DSN = strings.TrimSpace(value)
			if strings.HasPrefix(c.Database.DSN, "postgres") {
				c.Database.Driver = DriverPostgres
			}
		}
	}
	if c.Database.MaxOpenConns < 0 {
		c.Database.MaxOpenConns = 0
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("SHOTDECK_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	c.Server.JWTSecret = strings.TrimSpace(c.Server.JWTSecret)
	if c.Server.JWTSecret == "" {
		if value, ok := os.LookupEnv("SHOTDECK_JWT_SECRET"); ok {
			c.Server.JWTSecret = strings.TrimSpace(value)
		}
	}
	c.Server.DefaultUser = strings.TrimSpace(c.Server.DefaultUser)
	if c.Server.DefaultUser == "" {
		c.Server.DefaultUser = defaultUser
	}
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.AllowedOrigins = origins
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeFal() {
	c.Fal.APIKey = strings.TrimSpace(c.Fal.APIKey)
	if c.Fal.APIKey == "" {
		if value, ok := os.LookupEnv("FAL_KEY"); ok {
			c.Fal.APIKey = strings.TrimSpace(value)
		}
	}
	c.Fal.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fal.BaseURL), "/")
	if c.Fal.BaseURL == "" {
		c.Fal.BaseURL = defaultFalBaseURL
	}
	if c.Fal.ImageModel = strings.TrimSpace(c.Fal.ImageModel); c.Fal.ImageModel == "" {
		c.Fal.ImageModel = defaultFalImageModel
	}
	if c.Fal.VideoModel = strings.TrimSpace(c.Fal.VideoModel); c.Fal.VideoModel == "" {
		c.Fal.VideoModel = defaultFalVideoModel
	}
	if c.Fal.UpscaleModel = strings.TrimSpace(c.Fal.UpscaleModel); c.Fal.UpscaleModel == "" {
		c.Fal.UpscaleModel = defaultFalUpscaleModel
	}
	if c.Fal.PollIntervalSeconds <= 0 {
		c.Fal.PollIntervalSeconds = defaultFalPollSeconds
	}
	if c.Fal.TimeoutSeconds <= 0 {
		c.Fal.TimeoutSeconds = defaultFalTimeoutSeconds
	}
}

func (c *Config) normalizeMedia() {
	if c.Media.DownloadTimeoutSeconds <= 0 {
		c.Media.DownloadTimeoutSeconds = defaultDownloadSeconds
	}
	prefix := strings.TrimRight(strings.TrimSpace(c.Media.PublicPrefix), "/")
	if prefix == "" {
		prefix = defaultMediaPublicPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	c.Media.PublicPrefix = prefix
}

func (c *Config) normalizeWorker() {
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = defaultMaxAttempts
	}
}

func (c *Config) normalizeQueue() {
	c.Queue.RedisAddr = strings.TrimSpace(c.Queue.RedisAddr)
	if c.Queue.RedisAddr == "" {
		if value, ok := os.LookupEnv("REDIS_ADDR"); ok {
			c.Queue.RedisAddr = strings.TrimSpace(value)
		}
	}
	c.Queue.Name = strings.TrimSpace(c.Queue.Name)
	if c.Queue.Name == "" {
		c.Queue.Name = defaultQueueName
	}
	if c.Queue.SweepInterval <= 0 {
		c.Queue.SweepInterval = defaultQueueSweepInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
