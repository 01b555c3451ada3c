package services

import "context"

type contextKey string

const (
	projectIDKey contextKey = "project_id"
	taskIDKey    contextKey = "task_id"
	taskTypeKey  contextKey = "task_type"
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"
)

// WithProjectID annotates context with the project identifier.
func WithProjectID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, projectIDKey, id)
}

// ProjectIDFromContext extracts the project identifier if present.
func ProjectIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, projectIDKey)
}

// WithTaskID annotates context with the task identifier.
func WithTaskID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the task identifier if present.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, taskIDKey)
}

// WithTaskType annotates context with the task type being processed.
func WithTaskType(ctx context.Context, taskType string) context.Context {
	if taskType == "" {
		return ctx
	}
	return context.WithValue(ctx, taskTypeKey, taskType)
}

// TaskTypeFromContext returns the task type if present.
func TaskTypeFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, taskTypeKey)
}

// WithUserID annotates context with the authenticated user.
func WithUserID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, userIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
