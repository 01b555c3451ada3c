package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"shotdeck/internal/dispatch"
	"shotdeck/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("worker already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("worker handlers not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if m.cfg.BrokerEnabled() {
		server, err := m.startConsumer()
		if err != nil {
			m.mu.Unlock()
			cancel()
			return err
		}
		m.server = server
	} else {
		m.wg.Add(m.concurrency)
		for i := 0; i < m.concurrency; i++ {
			go m.runPoller(runCtx)
		}
	}
	m.wg.Add(1)
	go m.runSweeper(runCtx)

	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.logger.Info("worker started",
		logging.String(logging.FieldEventType, "worker_start"),
		logging.String("mode", m.Mode()),
		logging.Int("concurrency", m.concurrency),
	)
	return nil
}

// Stop terminates background processing and waits for in-flight tasks to
// observe cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	server := m.server
	m.running = false
	m.cancel = nil
	m.server = nil
	m.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
	cancel()
	m.wg.Wait()
	m.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stop"))
}

func (m *Manager) runPoller(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := m.store.ClaimNextTask(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleNextTaskError(ctx, err)
			continue
		}
		if task == nil {
			m.waitForTaskOrShutdown(ctx)
			continue
		}
		m.process(ctx, task)
	}
}

func (m *Manager) handleNextTaskError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "failed to claim next task", "task_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorRetry):
	}
}

func (m *Manager) waitForTaskOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) startConsumer() (*asynq.Server, error) {
	queue := dispatch.QueueName(m.cfg.Queue)
	server := asynq.NewServer(dispatch.RedisOpt(m.cfg.Queue), asynq.Config{
		Concurrency:     m.concurrency,
		Queues:          map[string]int{queue: 1},
		Logger:          asynqLogger{logger: m.logger},
		LogLevel:        asynq.WarnLevel,
		ShutdownTimeout: 10 * time.Second,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(dispatch.TypeRunTask, m.HandleRunTask)
	if err := server.Start(mux); err != nil {
		return nil, fmt.Errorf("start task consumer: %w", err)
	}
	return server, nil
}

// HandleRunTask consumes one dispatch message. Messages for tasks that are
// gone, not Pending, or still waiting on dependencies are acknowledged and
// dropped; the sweep dispatches them again once they become ready.
func (m *Manager) HandleRunTask(ctx context.Context, msg *asynq.Task) error {
	id, err := dispatch.ParseRunTask(msg)
	if err != nil {
		m.logger.Warn("dropping malformed dispatch message", logging.Error(err))
		return err
	}
	task, err := m.claimIfReady(ctx, id)
	if err != nil {
		return err
	}
	if task != nil {
		m.process(ctx, task)
	}
	return nil
}
