package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shotdeck/internal/config"
	"shotdeck/internal/dispatch"
	"shotdeck/internal/events"
	"shotdeck/internal/httpapi"
	"shotdeck/internal/logging"
	"shotdeck/internal/notifications"
	"shotdeck/internal/store"
	"shotdeck/internal/worker"
)

// Daemon owns the API server and worker lifecycles.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	hub    *events.Hub
	api    *httpapi.Server
	worker *worker.Manager
	tasks  dispatch.Dispatcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Components are the pieces a daemon runs. Either API or Worker may be nil.
type Components struct {
	Store      *store.Store
	Hub        *events.Hub
	API        *httpapi.Server
	Worker     *worker.Manager
	Dispatcher dispatch.Dispatcher
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                  `json:"running"`
	API          bool                  `json:"api"`
	Address      string                `json:"address,omitempty"`
	Database     string                `json:"database"`
	LockFilePath string                `json:"lockFile,omitempty"`
	EventCursor  uint64                `json:"eventCursor"`
	Worker       *worker.StatusSummary `json:"worker,omitempty"`
}

// New constructs a daemon from already built components.
func New(cfg *config.Config, logger *slog.Logger, parts Components) (*Daemon, error) {
	if cfg == nil || parts.Store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if parts.API == nil && parts.Worker == nil {
		return nil, errors.New("daemon requires an API server or a worker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		store:  parts.Store,
		hub:    parts.Hub,
		api:    parts.API,
		worker: parts.Worker,
		tasks:  parts.Dispatcher,
	}
	if d.api != nil {
		d.lockPath = cfg.LockPath()
		d.lock = flock.New(d.lockPath)
	}
	return d, nil
}

// Start acquires the lock when serving the API, then launches the worker and
// the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if d.lock != nil {
		ok, err := d.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("another shotdeck server is already running for %s", d.cfg.Paths.DataDir)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.worker != nil {
		if err := d.worker.Start(runCtx); err != nil {
			cancel()
			d.unlock()
			return fmt.Errorf("start worker: %w", err)
		}
	}
	if d.api != nil {
		if err := d.api.Start(runCtx); err != nil {
			if d.worker != nil {
				d.worker.Stop()
			}
			cancel()
			d.unlock()
			return fmt.Errorf("start api: %w", err)
		}
	}

	d.cancel = cancel
	d.running.Store(true)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("database", d.store.Driver()),
	}
	if d.api != nil {
		attrs = append(attrs, logging.String("address", d.api.Addr()), logging.String("lock", d.lockPath))
	}
	if d.worker != nil {
		attrs = append(attrs, logging.String("worker_mode", d.worker.Mode()))
	}
	d.logger.Info("shotdeck daemon started", logging.Args(attrs...)...)
	return nil
}

// Stop stops the API server and the worker and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.api != nil {
		d.api.Stop()
	}
	if d.worker != nil {
		d.worker.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.unlock()
	d.running.Store(false)
	d.logger.Info("shotdeck daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

func (d *Daemon) unlock() {
	if d.lock == nil {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close stops the daemon, then closes the dispatcher and the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.tasks != nil {
		if err := d.tasks.Close(); err != nil {
			d.logger.Warn("failed to close dispatcher", logging.Error(err))
		}
	}
	return d.store.Close()
}

// Addr returns the API listen address, or "" when no API is served.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		API:          d.api != nil,
		Address:      d.Addr(),
		Database:     d.store.Driver(),
		LockFilePath: d.lockPath,
	}
	if d.hub != nil {
		status.EventCursor = d.hub.Cursor()
	}
	if d.worker != nil {
		summary := d.worker.Status(ctx)
		status.Worker = &summary
	}
	return status
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	return SendTestNotification(ctx, d.cfg)
}

// SendTestNotification publishes a test event through the configured ntfy
// topic.
func SendTestNotification(ctx context.Context, cfg *config.Config) (bool, string, error) {
	if cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, notifications.Payload{}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
