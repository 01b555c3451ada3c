package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"shotdeck/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternal, "fal", "submit", "request rejected", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"fal", "submit", "request rejected", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsSurvivesFurtherWrapping(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "studio", "create task", "prompt is required", nil)
	err = services.WithHint(err, "set params.prompt")
	outer := fmt.Errorf("handler: %w", err)

	details := services.Details(outer)
	if details.Kind != services.KindValidation {
		t.Fatalf("expected validation kind, got %s", details.Kind)
	}
	if details.Component != "studio" || details.Operation != "create task" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Message != "prompt is required" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
	if details.Hint != "set params.prompt" {
		t.Fatalf("unexpected hint: %q", details.Hint)
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrValidation, "", "", "bad", nil), false},
		{services.Wrap(services.ErrConfiguration, "", "", "no key", nil), false},
		{services.Wrap(services.ErrExternal, "", "", "502", nil), true},
		{services.Wrap(services.ErrTransient, "", "", "timeout", nil), true},
		{errors.New("plain"), true},
	}
	for _, tc := range tests {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil error")
	}
}
