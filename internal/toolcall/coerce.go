package toolcall

import (
	"fmt"
	"strconv"
	"strings"
)

// freeForm marks the string keys that may be empty after stripping.
var freeForm = map[string]bool{"content": true, "body": true, "query": true}

func reqString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", &ArgumentError{Key: key, Msg: "required"}
	}
	return coerceString(key, v)
}

func optString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	return coerceString(key, v)
}

func coerceString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &ArgumentError{Key: key, Msg: fmt.Sprintf("expected string, got %T", v)}
	}
	if !freeForm[key] && strings.TrimSpace(s) == "" {
		return "", &ArgumentError{Key: key, Msg: "must be non-empty"}
	}
	if freeForm[key] {
		return s, nil
	}
	return strings.TrimSpace(s), nil
}

func optBool(args map[string]any, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return false, &ArgumentError{Key: key, Msg: fmt.Sprintf("not a boolean: %q", t)}
	case float64:
		if t == 1 {
			return true, nil
		}
		if t == 0 {
			return false, nil
		}
	}
	return false, &ArgumentError{Key: key, Msg: fmt.Sprintf("expected boolean, got %T", v)}
}

// intConstraint bounds an integer argument.
type intConstraint int

const (
	anyInt intConstraint = iota
	nonNegative
	positive
)

func optInt(args map[string]any, key string, def int, c intConstraint) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := coerceInt(key, v)
	if err != nil {
		return 0, err
	}
	if err := checkInt(key, n, c); err != nil {
		return 0, err
	}
	return n, nil
}

// optIntPtr distinguishes "absent" from zero, for cursor arguments.
func optIntPtr(args map[string]any, key string, c intConstraint) (*int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := coerceInt(key, v)
	if err != nil {
		return nil, err
	}
	if err := checkInt(key, n, c); err != nil {
		return nil, err
	}
	return &n, nil
}

func coerceInt(key string, v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		n := int(t)
		if float64(n) != t {
			return 0, &ArgumentError{Key: key, Msg: fmt.Sprintf("not an integer: %v", t)}
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, &ArgumentError{Key: key, Msg: fmt.Sprintf("not an integer: %q", t)}
		}
		return n, nil
	}
	return 0, &ArgumentError{Key: key, Msg: fmt.Sprintf("expected integer, got %T", v)}
}

func checkInt(key string, n int, c intConstraint) error {
	switch c {
	case nonNegative:
		if n < 0 {
			return &ArgumentError{Key: key, Msg: "must be non-negative"}
		}
	case positive:
		if n <= 0 {
			return &ArgumentError{Key: key, Msg: "must be positive"}
		}
	}
	return nil
}

func optStringSlice(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, nil
		}
		return nil, &ArgumentError{Key: key, Msg: fmt.Sprintf("expected array of strings, got %T", v)}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, &ArgumentError{Key: key, Msg: fmt.Sprintf("expected array of strings, got %T element", item)}
		}
		out = append(out, s)
	}
	return out, nil
}
