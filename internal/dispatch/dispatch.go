package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"shotdeck/internal/config"
	"shotdeck/internal/services"
	"shotdeck/internal/store"
)

// TypeRunTask is the asynq task type carrying a task id.
const TypeRunTask = "shotdeck:task:run"

const component = "dispatch"

// Dispatcher announces ready tasks. studio.Service and the worker sweep both
// call Dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *store.Task) error
	Close() error
}

// New returns an Asynq dispatcher when a Redis address is configured and a
// Local one otherwise.
func New(cfg *config.Config) Dispatcher {
	if !cfg.BrokerEnabled() {
		return NewLocal()
	}
	return NewAsynq(cfg.Queue)
}

// Local wakes an in-process worker. Wakes coalesce: many dispatches before the
// worker looks again count as one.
type Local struct {
	wake chan struct{}
}

// NewLocal constructs a Local dispatcher.
func NewLocal() *Local {
	return &Local{wake: make(chan struct{}, 1)}
}

// Dispatch never blocks.
func (l *Local) Dispatch(context.Context, *store.Task) error {
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Wake fires after at least one Dispatch since the last receive.
func (l *Local) Wake() <-chan struct{} {
	return l.wake
}

func (l *Local) Close() error { return nil }

// Payload is the JSON body of a TypeRunTask message.
type Payload struct {
	TaskID string `json:"taskId"`
}

// RedisOpt maps the [queue] config section to asynq connection options.
func RedisOpt(cfg config.Queue) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// Asynq enqueues one message per task on a Redis-backed queue.
type Asynq struct {
	client *asynq.Client
	queue  string
}

// QueueName returns the asynq queue tasks are placed on.
func QueueName(cfg config.Queue) string {
	if name := strings.TrimSpace(cfg.Name); name != "" {
		return name
	}
	return "default"
}

// NewAsynq connects lazily; the first Dispatch surfaces connection errors.
func NewAsynq(cfg config.Queue) *Asynq {
	return &Asynq{client: asynq.NewClient(RedisOpt(cfg)), queue: QueueName(cfg)}
}

// Queue returns the asynq queue name messages are placed on.
func (a *Asynq) Queue() string {
	return a.queue
}

// Dispatch enqueues task. The asynq task id is the store id, so a task that
// is already waiting in Redis is not enqueued twice.
func (a *Asynq) Dispatch(ctx context.Context, task *store.Task) error {
	msg, err := NewRunTask(task.ID)
	if err != nil {
		return err
	}
	_, err = a.client.EnqueueContext(ctx, msg,
		asynq.Queue(a.queue),
		asynq.TaskID(task.ID),
		asynq.MaxRetry(0),
		asynq.Retention(0),
		asynq.Timeout(time.Hour),
	)
	switch {
	case err == nil:
		return nil
	case errorsIsConflict(err):
		return nil
	default:
		return services.Wrap(services.ErrTransient, component, "enqueue", "task "+task.ID, err)
	}
}

func (a *Asynq) Close() error {
	return a.client.Close()
}

// NewRunTask builds the asynq message for taskID.
func NewRunTask(taskID string) (*asynq.Task, error) {
	body, err := json.Marshal(Payload{TaskID: taskID})
	if err != nil {
		return nil, fmt.Errorf("encode dispatch payload: %w", err)
	}
	return asynq.NewTask(TypeRunTask, body), nil
}

// ParseRunTask extracts the task id. Malformed messages are marked with
// asynq.SkipRetry.
func ParseRunTask(t *asynq.Task) (string, error) {
	var payload Payload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return "", fmt.Errorf("decode dispatch payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.TaskID) == "" {
		return "", fmt.Errorf("dispatch payload missing task id: %w", asynq.SkipRetry)
	}
	return payload.TaskID, nil
}
