package main

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// parseKeyValues parses "key=value" arguments into a map. Values that look
// like a JSON array or object are decoded so list and dict fields can be
// passed on the command line.
func parseKeyValues(args []string) (map[string]any, error) {
	data := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		if _, dup := data[key]; dup {
			return nil, fmt.Errorf("argument %q given twice", key)
		}
		data[key] = parseValue(value)
	}
	return data, nil
}

func parseValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return s
}
