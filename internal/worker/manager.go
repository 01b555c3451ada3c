package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"shotdeck/internal/config"
	"shotdeck/internal/dispatch"
	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/media"
	"shotdeck/internal/notifications"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
)

const component = "worker"

// Manager coordinates task execution using registered stage handlers.
type Manager struct {
	cfg        *config.Config
	store      *store.Store
	handlers   map[string]stage.Handler
	logger     *slog.Logger
	notifier   notifications.Service
	events     events.Publisher
	dispatcher dispatch.Dispatcher
	media      *media.Store
	wake       <-chan struct{}

	concurrency   int
	pollInterval  time.Duration
	errorRetry    time.Duration
	sweepInterval time.Duration
	heartbeat     *HeartbeatMonitor

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	server   *asynq.Server
	inFlight map[string]ActiveTask
	lastErr  error
	lastTask *store.Task

	queueActive bool
	queueStart  time.Time
	processed   int
	failed      int
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithNotifier overrides the notification service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithPublisher sends cache invalidation events for task outcomes.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.events = p
		}
	}
}

// WithDispatcher shares the dispatcher used by the API. A *dispatch.Local
// wakes the poll loop; any dispatcher receives sweep re-dispatches.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(m *Manager) {
		if d != nil {
			m.dispatcher = d
		}
	}
}

// WithMedia lets the manager delete mirrored outputs of results it discards.
func WithMedia(ms *media.Store) Option {
	return func(m *Manager) {
		m.media = ms
	}
}

// New constructs a task manager. handlers maps task types to stage handlers.
func New(cfg *config.Config, st *store.Store, handlers map[string]stage.Handler, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, component)
	m := &Manager{
		cfg:           cfg,
		store:         st,
		handlers:      handlers,
		logger:        logger,
		events:        events.Nop{},
		concurrency:   max(cfg.Worker.Concurrency, 1),
		pollInterval:  time.Duration(cfg.Worker.PollInterval) * time.Second,
		errorRetry:    time.Duration(cfg.Worker.ErrorRetryInterval) * time.Second,
		sweepInterval: time.Duration(cfg.Queue.SweepInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Worker.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Worker.HeartbeatTimeout)*time.Second,
			cfg.Worker.MaxAttempts,
		),
		inFlight: make(map[string]ActiveTask),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notifications.NewService(cfg)
	}
	if m.dispatcher == nil {
		m.dispatcher = dispatch.New(cfg)
	}
	if local, ok := m.dispatcher.(*dispatch.Local); ok {
		m.wake = local.Wake()
	}
	return m
}

// Mode reports how tasks reach this worker.
func (m *Manager) Mode() string {
	if m.cfg.BrokerEnabled() {
		return "redis"
	}
	return "local"
}
