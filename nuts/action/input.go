package action

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// isoMillis is the instant format the backend expects: UTC, millisecond
// precision, Z suffix
const isoMillis = "2006-01-02T15:04:05.000Z"

// localLayouts are accepted for operator-entered local date/times
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// FormatInstant renders t as UTC ISO-8601 with milliseconds
func FormatInstant(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// ParseRunAt converts an operator-entered date/time to an instant. Values
// carrying an offset (RFC 3339) are taken as is; local forms such as
// "2024-01-02T03:00" are read in loc (time.Local when nil).
func ParseRunAt(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &ValidationError{Field: "run_at", Reason: "a date and time are required"}
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &ValidationError{
		Field:  "run_at",
		Value:  value,
		Reason: "expected YYYY-MM-DDTHH:MM or an RFC 3339 timestamp",
	}
}

// ParseParams splits raw into shell-style words. Each word that is valid
// JSON becomes the decoded value; anything else stays a string. An empty
// input yields an empty, non-nil slice.
func ParseParams(raw string) ([]any, error) {
	words, err := shellquote.Split(raw)
	if err != nil {
		return nil, &ValidationError{Field: "params", Value: raw, Reason: err.Error()}
	}

	params := make([]any, 0, len(words))
	for _, w := range words {
		var v any
		if err := json.Unmarshal([]byte(w), &v); err == nil {
			params = append(params, v)
			continue
		}
		params = append(params, w)
	}
	return params, nil
}
