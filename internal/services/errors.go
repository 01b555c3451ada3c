package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfiguration = errors.New("configuration error")
	ErrExternal      = errors.New("external service error")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind names the marker carried by an error.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindConfiguration ErrorKind = "configuration"
	KindExternal      ErrorKind = "external"
	KindTransient     ErrorKind = "transient"
	KindUnknown       ErrorKind = "unknown"
)

// ServiceError keeps the component and operation that produced a failure so
// logs and API responses can report them separately from the message.
type ServiceError struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Component, e.Operation, e.Message)
	marker := e.Marker
	if marker == nil {
		marker = ErrTransient
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	marker := e.Marker
	if marker == nil {
		marker = ErrTransient
	}
	if e.Cause == nil {
		return []error{marker}
	}
	return []error{marker, e.Cause}
}

// Wrap builds an error that includes component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator hint to a ServiceError. Other errors are
// returned unchanged.
func WithHint(err error, hint string) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		svcErr.Hint = strings.TrimSpace(hint)
	}
	return err
}

// ErrorDetails is the flattened view of an error used for logging and API output.
type ErrorDetails struct {
	Kind      ErrorKind
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts the classification and context of err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Message: err.Error()}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		details.Component = svcErr.Component
		details.Operation = svcErr.Operation
		details.Hint = svcErr.Hint
		details.Cause = svcErr.Cause
		if svcErr.Message != "" {
			details.Message = svcErr.Message
		}
	}
	return details
}

// Kind classifies err by its marker.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrExternal):
		return KindExternal
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Retryable reports whether a failed task should be attempted again.
// Validation, configuration and authorization failures never succeed on retry.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindValidation, KindConfiguration, KindUnauthorized, KindNotFound, KindConflict:
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
