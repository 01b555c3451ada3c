package stage

import (
	"errors"
	"testing"

	"shotdeck/internal/services"
	"shotdeck/internal/store"
)

func TestRequireString(t *testing.T) {
	params := store.JSONObject{"prompt": "  a harbor  ", "blank": " "}
	got, err := RequireString("test", params, "prompt")
	if err != nil || got != "a harbor" {
		t.Fatalf("RequireString = %q, %v", got, err)
	}
	for _, key := range []string{"blank", "missing"} {
		if _, err := RequireString("test", params, key); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %s, got %v", key, err)
		}
	}
}

func TestOptionalInt(t *testing.T) {
	params := store.JSONObject{"json": float64(4), "text": "10", "frac": 2.5, "bool": true}
	if n, err := OptionalInt("test", params, "json", 1); err != nil || n != 4 {
		t.Fatalf("json number = %d, %v", n, err)
	}
	if n, err := OptionalInt("test", params, "text", 1); err != nil || n != 10 {
		t.Fatalf("numeric string = %d, %v", n, err)
	}
	if n, err := OptionalInt("test", params, "missing", 7); err != nil || n != 7 {
		t.Fatalf("fallback = %d, %v", n, err)
	}
	for _, key := range []string{"frac", "bool"} {
		if _, err := OptionalInt("test", params, key, 0); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %s, got %v", key, err)
		}
	}
}

func TestStringList(t *testing.T) {
	params := store.JSONObject{
		"single": "https://a",
		"list":   []any{"https://a", " ", "https://b"},
		"mixed":  []any{"https://a", 3.0},
	}
	if got, err := StringList("test", params, "single"); err != nil || len(got) != 1 {
		t.Fatalf("single = %v, %v", got, err)
	}
	if got, err := StringList("test", params, "list"); err != nil || len(got) != 2 || got[1] != "https://b" {
		t.Fatalf("list = %v, %v", got, err)
	}
	if _, err := StringList("test", params, "mixed"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for mixed list, got %v", err)
	}
}

func TestOneOf(t *testing.T) {
	if err := OneOf("test", "scale", 2, 2, 4); err != nil {
		t.Fatalf("OneOf: %v", err)
	}
	if err := OneOf("test", "scale", 3, 2, 4); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
