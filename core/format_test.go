package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{"zero", 0, "0 B"},
		{"negative", -5, "0 B"},
		{"bytes", 1023, "1023 B"},
		{"one KB", 1024, "1.00 KB"},
		{"fractional KB", 1536, "1.50 KB"},
		{"MB", 3 * BytesPerMB, "3.00 MB"},
		{"GB", 2 * BytesPerGB, "2.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"milliseconds", 850 * time.Millisecond, "850ms"},
		{"seconds", 4200 * time.Millisecond, "4.2s"},
		{"minutes", 2*time.Minute + 30*time.Second, "2m 30s"},
		{"hours", time.Hour + 5*time.Minute + 10*time.Second, "1h 5m"},
		{"negative", -850 * time.Millisecond, "-850ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.d))
		})
	}
}
