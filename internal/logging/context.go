package logging

import (
	"context"
	"log/slog"

	"shotdeck/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldProjectID is the standardized structured logging key for project identifiers.
	FieldProjectID = "project_id"
	// FieldTaskID is the standardized structured logging key for task identifiers.
	FieldTaskID = "task_id"
	// FieldTaskType is the standardized structured logging key for task types.
	FieldTaskType = "task_type"
	// FieldUserID is the standardized structured logging key for the acting user.
	FieldUserID = "user_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (task_complete, http_request, ...).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the services error classification.
	FieldErrorKind = "error_kind"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.ProjectIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProjectID, id))
	}
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTaskID, id))
	}
	if taskType, ok := services.TaskTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTaskType, taskType))
	}
	if user, ok := services.UserIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUserID, user))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
