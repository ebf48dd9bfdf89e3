package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldName trims and case-folds an identifier-like value (gateway names,
// status labels) so lookups are insensitive to the caller's casing.
// A fresh caser per call: cases.Caser is stateful and not goroutine safe.
func FoldName(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
