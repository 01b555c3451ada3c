package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/media"
	"shotdeck/internal/services"
	"shotdeck/internal/store"
)

const component = "studio"

// Dispatcher hands newly runnable tasks to the worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *store.Task) error
}

// TaskValidator checks task params before a task is queued.
type TaskValidator func(taskType string, params store.JSONObject) error

// Service implements the studio operations.
type Service struct {
	store      *store.Store
	events     events.Publisher
	media      *media.Store
	dispatcher Dispatcher
	validate   TaskValidator
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithPublisher sets where invalidation events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithMedia lets deletions clean up locally stored files.
func WithMedia(m *media.Store) Option {
	return func(s *Service) {
		s.media = m
	}
}

// WithDispatcher notifies the worker when tasks become runnable.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

// WithTaskValidator installs per task type param validation.
func WithTaskValidator(v TaskValidator) Option {
	return func(s *Service) {
		s.validate = v
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Service over st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		events: events.Nop{},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, component)
	return s
}

// Store exposes the underlying store for read paths that need no checks.
func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) emit(userID string, typ events.Type, action events.Action, projectID, entityID string) {
	s.events.Publish(events.Event{
		Type:      typ,
		Action:    action,
		ProjectID: projectID,
		EntityID:  entityID,
		UserID:    userID,
		Timestamp: s.now().UTC(),
	})
}

func invalid(op, format string, args ...any) error {
	return services.Wrap(services.ErrValidation, component, op, fmt.Sprintf(format, args...), nil)
}

func notFound(op, what string) error {
	return services.Wrap(services.ErrNotFound, component, op, what+" not found", nil)
}

// translate maps store errors onto services markers. Unknown failures keep
// their cause and gain a stack through pkg/errors.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return services.Wrap(services.ErrNotFound, component, op, "not found", err)
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrTaskNotRunning):
		return services.Wrap(services.ErrConflict, component, op, err.Error(), err)
	case errors.Is(err, store.ErrInvalidReference), errors.Is(err, store.ErrInvalidOrder):
		return services.Wrap(services.ErrValidation, component, op, err.Error(), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return pkgerrors.Wrapf(err, "%s %s", component, op)
	}
}

func requireUser(op, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return services.Wrap(services.ErrUnauthorized, component, op, "user required", nil)
	}
	return nil
}

// project loads a project owned by userID.
func (s *Service) project(ctx context.Context, op, userID, projectID string) (*store.Project, error) {
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, invalid(op, "project id required")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && project.UserID != userID) {
		return nil, notFound(op, "project")
	}
	if err != nil {
		return nil, translate(op, err)
	}
	return project, nil
}

// shot loads a shot whose project is owned by userID.
func (s *Service) shot(ctx context.Context, op, userID, shotID string) (*store.Shot, error) {
	shot, err := s.store.GetShot(ctx, shotID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(op, "shot")
	}
	if err != nil {
		return nil, translate(op, err)
	}
	if _, err := s.project(ctx, op, userID, shot.ProjectID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, notFound(op, "shot")
		}
		return nil, err
	}
	return shot, nil
}

func (s *Service) generation(ctx context.Context, op, userID, generationID string) (*store.Generation, error) {
	gen, err := s.store.GetGeneration(ctx, generationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(op, "generation")
	}
	if err != nil {
		return nil, translate(op, err)
	}
	if _, err := s.project(ctx, op, userID, gen.ProjectID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, notFound(op, "generation")
		}
		return nil, err
	}
	return gen, nil
}

func (s *Service) task(ctx context.Context, op, userID, taskID string) (*store.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(op, "task")
	}
	if err != nil {
		return nil, translate(op, err)
	}
	if _, err := s.project(ctx, op, userID, task.ProjectID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, notFound(op, "task")
		}
		return nil, err
	}
	return task, nil
}
