package stage

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"shotdeck/internal/services"
	"shotdeck/internal/store"
)

// RequireString returns params[key] trimmed, or an ErrValidation naming the
// missing parameter.
func RequireString(component string, params store.JSONObject, key string) (string, error) {
	value := strings.TrimSpace(params.String(key))
	if value == "" {
		return "", services.Wrap(services.ErrValidation, component, "read params",
			fmt.Sprintf("params.%s is required", key), nil)
	}
	return value, nil
}

// OptionalInt reads an integer parameter. JSON numbers arrive as float64 and
// numeric strings are accepted. A missing key returns fallback.
func OptionalInt(component string, params store.JSONObject, key string, fallback int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	invalid := func() (int, error) {
		return 0, services.Wrap(services.ErrValidation, component, "read params",
			fmt.Sprintf("params.%s must be an integer, got %v", key, raw), nil)
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return invalid()
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return fallback, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return invalid()
		}
		return n, nil
	default:
		return invalid()
	}
}

// OptionalInt64 is OptionalInt for values such as seeds that may exceed int32.
func OptionalInt64(component string, params store.JSONObject, key string) (int64, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err == nil {
			return n, true, nil
		}
	}
	return 0, false, services.Wrap(services.ErrValidation, component, "read params",
		fmt.Sprintf("params.%s must be an integer, got %v", key, raw), nil)
}

// StringList reads a parameter holding a string or a list of strings. Blank
// entries are dropped.
func StringList(component string, params store.JSONObject, key string) ([]string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var out []string
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, services.Wrap(services.ErrValidation, component, "read params",
					fmt.Sprintf("params.%s must contain strings", key), nil)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		return nil, services.Wrap(services.ErrValidation, component, "read params",
			fmt.Sprintf("params.%s must be a string or list of strings", key), nil)
	}
	return out, nil
}

// OneOf validates that value is among allowed.
func OneOf(component, key string, value int, allowed ...int) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	parts := make([]string, len(allowed))
	for i, candidate := range allowed {
		parts[i] = strconv.Itoa(candidate)
	}
	return services.Wrap(services.ErrValidation, component, "read params",
		fmt.Sprintf("params.%s must be one of %s, got %d", key, strings.Join(parts, ", "), value), nil)
}
