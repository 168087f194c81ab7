package tools

import (
	"fmt"
	"time"
)

// Model-supplied inputs arrive as generic JSON; these helpers pull typed
// values out with tolerant coercion (numbers may arrive as float64 or string).

func stringArg(input map[string]any, key string) string {
	if v, ok := input[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func requireString(input map[string]any, key string) (string, error) {
	s := stringArg(input, key)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func floatArg(input map[string]any, key string) (float64, bool) {
	switch v := input[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func intArg(input map[string]any, key string, def int) int {
	if f, ok := floatArg(input, key); ok {
		return int(f)
	}
	return def
}

// timeArg parses an ISO timestamp or date. Bare dates are midnight UTC.
func timeArg(input map[string]any, key string) (time.Time, error) {
	s := stringArg(input, key)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s must be an ISO timestamp (got %q)", key, s)
}

// cents converts a dollar amount to integer cents, rounding halves away from zero.
func cents(amount float64) int64 {
	if amount < 0 {
		return -int64(-amount*100 + 0.5)
	}
	return int64(amount*100 + 0.5)
}

func dollars(c int64) float64 {
	return float64(c) / 100
}
