package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInterval(t *testing.T) {
	assert.Equal(t, "1h", FormatInterval(time.Hour))
	assert.Equal(t, "5m", FormatInterval(5*time.Minute))
	assert.Equal(t, "30s", FormatInterval(30*time.Second))
	assert.Equal(t, "2d", FormatInterval(48*time.Hour))
	assert.Equal(t, "1.5s", FormatInterval(1500*time.Millisecond))
}

func TestParseIntervalDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"1h":    time.Hour,
		"15m":   15 * time.Minute,
		"10s":   10 * time.Second,
		"1d":    24 * time.Hour,
		"1h30m": 90 * time.Minute,
		"250ms": 250 * time.Millisecond,
	}
	for in, want := range tests {
		got, err := ParseIntervalDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "h", "0m", "xyz"} {
		_, err := ParseIntervalDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("1700000000000")
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got)

	got, err = ParseTimestamp("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}
