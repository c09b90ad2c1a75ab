package apiutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

// PathID reads a positive integer path value such as {id}.
func PathID(r *http.Request, key string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(key), key)
}

// QueryID reads a positive integer query parameter.
func QueryID(r *http.Request, key string) (int64, error) {
	return ParsePositiveInt64Field(r.URL.Query().Get(key), key)
}

// ParseKickoff accepts RFC 3339 or a local "2006-01-02T15:04" and returns UTC.
func ParseKickoff(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("kickoffAt is required")
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("kickoffAt must be a valid date and time")
}
