package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UserMessage renders an error as a single line suitable for CLI output and
// API payloads: stable code, message, and identifier details. It never
// includes a stack trace or wrapped cause chains.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var pe *PulseError
	if !errors.As(err, &pe) {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", pe.Code, pe.Message)

	if len(pe.Details) > 0 {
		keys := make([]string, 0, len(pe.Details))
		for k := range pe.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, pe.Details[k]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}

	return b.String()
}
