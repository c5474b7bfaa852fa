package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// parseWhen reads a point in time given as Unix seconds, a duration back
// from now ("36h"), or a date ("2024-05-01", RFC 3339).
func parseWhen(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}
	if n, err := cast.ToInt64E(s); err == nil {
		return n, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d).Unix(), nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want unix seconds, a duration or a date", s)
	}
	return t.Unix(), nil
}
