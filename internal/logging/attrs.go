package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic form accepted by slog.Logger methods.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component attribute. A nil logger
// yields a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

const defaultErrorHint = "check logs for details"

// WarnWithContext logs a warning that always carries event_type and error_hint.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logClassified(logger, slog.LevelWarn, msg, eventType, attrs)
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logClassified(logger, slog.LevelError, msg, eventType, attrs)
}

func logClassified(logger *slog.Logger, level slog.Level, msg, eventType string, attrs []Attr) {
	if logger == nil {
		return
	}
	hasKey := func(key string) bool {
		return slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == key })
	}
	if !hasKey(FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasKey(FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, defaultErrorHint))
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
