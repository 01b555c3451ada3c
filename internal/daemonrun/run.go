package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"shotdeck/internal/config"
	"shotdeck/internal/daemon"
	"shotdeck/internal/dispatch"
	"shotdeck/internal/events"
	"shotdeck/internal/generators"
	"shotdeck/internal/httpapi"
	"shotdeck/internal/logging"
	"shotdeck/internal/media"
	"shotdeck/internal/notifications"
	"shotdeck/internal/prompts"
	"shotdeck/internal/services/fal"
	"shotdeck/internal/services/llm"
	"shotdeck/internal/store"
	"shotdeck/internal/studio"
	"shotdeck/internal/worker"
)

// Options configures process runtime behavior.
type Options struct {
	LogLevel string
	// API serves the HTTP API.
	API bool
	// Worker executes queued tasks in this process.
	Worker bool
}

// Run starts the shotdeck runtime and blocks until the context is cancelled
// or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if !opts.API && !opts.Worker {
		return fmt.Errorf("nothing to run: enable the api, the worker, or both")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg, opts)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, logger, Build(cfg, st, logger, opts))
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bind address, database access and that no other server owns the data directory"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("shotdeck shutting down")
	return nil
}

// Build assembles the components selected by opts around st. The API and the
// worker share one dispatcher so local wakes reach in-process pollers.
func Build(cfg *config.Config, st *store.Store, logger *slog.Logger, opts Options) daemon.Components {
	hub := events.NewHub(0)
	hub.AddSink(events.LogSink{Logger: logging.NewComponentLogger(logger, "events")})
	mediaStore := media.NewStore(cfg, logger)
	dispatcher := dispatch.New(cfg)

	parts := daemon.Components{Store: st, Hub: hub, Dispatcher: dispatcher}
	svc := studio.New(st,
		studio.WithPublisher(hub),
		studio.WithMedia(mediaStore),
		studio.WithDispatcher(dispatcher),
		studio.WithTaskValidator(generators.Validate),
		studio.WithLogger(logger),
	)

	var mgr *worker.Manager
	if opts.Worker {
		falClient := fal.NewClient(fal.ConfigFromApp(cfg))
		handlers := generators.Handlers(generators.DepsFromConfig(cfg, st, falClient, mediaStore, logger))
		mgr = worker.New(cfg, st, handlers, logger,
			worker.WithNotifier(notifications.NewService(cfg)),
			worker.WithPublisher(hub),
			worker.WithDispatcher(dispatcher),
			worker.WithMedia(mediaStore),
		)
		parts.Worker = mgr
	}

	if opts.API {
		keys := func(ctx context.Context, userID string) (string, error) {
			return svc.ResolveAPIKey(ctx, userID, store.ProviderOpenAI)
		}
		promptSvc := prompts.New(llm.NewClient(llm.ConfigFromApp(cfg)), keys, logger)
		parts.API = httpapi.New(cfg, httpapi.Deps{
			Studio:  svc,
			Prompts: promptSvc,
			Hub:     hub,
			Media:   mediaStore,
			Status:  statusFunc(cfg, st, hub, mgr),
			Logger:  logger,
		})
	}
	return parts
}

type runtimeStatus struct {
	Database    string                `json:"database"`
	Broker      string                `json:"broker"`
	EventCursor uint64                `json:"eventCursor"`
	TaskCounts  map[store.Status]int  `json:"taskCounts,omitempty"`
	Worker      *worker.StatusSummary `json:"worker,omitempty"`
}

func statusFunc(cfg *config.Config, st *store.Store, hub *events.Hub, mgr *worker.Manager) httpapi.StatusFunc {
	broker := "local"
	if cfg.BrokerEnabled() {
		broker = "redis"
	}
	return func(ctx context.Context) any {
		status := runtimeStatus{Database: st.Driver(), Broker: broker, EventCursor: hub.Cursor()}
		if mgr != nil {
			summary := mgr.Status(ctx)
			status.Worker = &summary
			status.TaskCounts = summary.TaskStats
		} else if counts, err := st.Stats(ctx); err == nil {
			status.TaskCounts = counts
		}
		return status
	}
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config, opts Options) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("api", opts.API),
		logging.Bool("worker", opts.Worker),
		logging.String("database_driver", cfg.Database.Driver),
		logging.String("bind", cfg.Server.Bind),
		logging.Bool("broker_enabled", cfg.BrokerEnabled()),
		logging.Bool("fal_key_present", strings.TrimSpace(cfg.Fal.APIKey) != ""),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("auth_enabled", cfg.Server.APIToken != "" || cfg.Server.JWTSecret != ""),
		logging.Bool("mirror_outputs", cfg.Media.MirrorOutputs),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
