package tool

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errMissingArg = errors.New("missing required field")

// stringArg reads a trimmed string argument. Numbers are accepted because
// models sometimes send phone numbers unquoted.
func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("%w: %s", errMissingArg, key)
		}
		return "", nil
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", fmt.Errorf("field %s must be a string, got %T", key, raw)
	}

	if s == "" && required {
		return "", fmt.Errorf("%w: %s", errMissingArg, key)
	}
	return s, nil
}
