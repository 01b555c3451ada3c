package config

const (
	defaultConfigPath         = "~/.config/shotdeck/config.toml"
	defaultDataDir            = "~/.local/share/shotdeck"
	defaultMediaDir           = "~/.local/share/shotdeck/media"
	defaultLogDir             = "~/.local/share/shotdeck/logs"
	defaultServerBind         = "127.0.0.1:7788"
	defaultUser               = "local"
	defaultLLMBaseURL         = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel           = "gpt-4o-mini"
	defaultLLMTitle           = "shotdeck prompts"
	defaultLLMTimeoutSeconds  = 60
	defaultFalBaseURL         = "https://queue.fal.run"
	defaultFalImageModel      = "fal-ai/flux/dev"
	defaultFalVideoModel      = "fal-ai/kling-video/v1.6/standard/image-to-video"
	defaultFalUpscaleModel    = "fal-ai/esrgan"
	defaultFalPollSeconds     = 2
	defaultFalTimeoutSeconds  = 900
	defaultDownloadSeconds    = 120
	defaultMediaPublicPrefix  = "/media"
	defaultWorkerPoll         = 3
	defaultWorkerErrorRetry   = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultMaxAttempts        = 3
	defaultQueueName          = "shotdeck"
	defaultQueueSweepInterval = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"

	// DriverSQLite selects the embedded modernc SQLite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects lib/pq.
	DriverPostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Server: Server{
			Bind:        defaultServerBind,
			DefaultUser: defaultUser,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Fal: Fal{
			BaseURL:             defaultFalBaseURL,
			ImageModel:          defaultFalImageModel,
			VideoModel:          defaultFalVideoModel,
			UpscaleModel:        defaultFalUpscaleModel,
			PollIntervalSeconds: defaultFalPollSeconds,
			TimeoutSeconds:      defaultFalTimeoutSeconds,
		},
		Media: Media{
			MirrorOutputs:          true,
			DownloadTimeoutSeconds: defaultDownloadSeconds,
			PublicPrefix:           defaultMediaPublicPrefix,
		},
		Worker: Worker{
			Enabled:            true,
			Concurrency:        1,
			PollInterval:       defaultWorkerPoll,
			ErrorRetryInterval: defaultWorkerErrorRetry,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			MaxAttempts:        defaultMaxAttempts,
		},
		Queue: Queue{
			Name:          defaultQueueName,
			SweepInterval: defaultQueueSweepInterval,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			TaskFailed:     true,
			QueueDrained:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
