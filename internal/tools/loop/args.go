package loop

import "fmt"

// requireString extracts a non-empty string from args by key.
func requireString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", errMissing(key)
	}
	return v, nil
}

func errMissing(key string) error {
	return fmt.Errorf("%s is required", key)
}

// optionalString extracts a string from args by key, or "".
func optionalString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// limitArg reads a numeric limit, clamped to [1, max].
func limitArg(args map[string]any, key string, fallback, max int) int {
	f, ok := args[key].(float64)
	if !ok {
		return fallback
	}
	n := int(f)
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}
