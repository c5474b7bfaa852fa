package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhen(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{name: "Unix Seconds", input: "1700000000", want: 1700000000},
		{name: "Duration Back From Now", input: "36h", want: now.Add(-36 * time.Hour).Unix()},
		{name: "Date", input: "2024-05-01", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Unix()},
		{name: "RFC3339", input: "2024-05-01T10:00:00Z", want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Unix()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhen(tt.input, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseWhen("yesterday-ish", now)
	assert.Error(t, err)
	_, err = parseWhen(" ", now)
	assert.Error(t, err)
}
