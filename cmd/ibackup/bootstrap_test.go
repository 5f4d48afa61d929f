package main

import (
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/ibackup/pkg/ibackup/config"
	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRotationConfig(t *testing.T) {
	defaultSize := logging.DefaultRotationConfig().MaxSize

	tests := []struct {
		name     string
		input    config.RotationConfig
		expected logging.RotationConfig
	}{
		{
			name:     "decimal size",
			input:    config.RotationConfig{MaxSize: "10MB", MaxAge: 30, MaxBackups: 5, Daily: true},
			expected: logging.RotationConfig{MaxSize: 10 * 1000 * 1000, MaxAge: 30, MaxBackups: 5, Daily: true},
		},
		{
			name:     "binary size",
			input:    config.RotationConfig{MaxSize: "1GiB", MaxAge: 7, MaxBackups: 3},
			expected: logging.RotationConfig{MaxSize: 1024 * 1024 * 1024, MaxAge: 7, MaxBackups: 3},
		},
		{
			name:     "empty max_size uses default",
			input:    config.RotationConfig{MaxAge: 14, MaxBackups: 2, Daily: true},
			expected: logging.RotationConfig{MaxSize: defaultSize, MaxAge: 14, MaxBackups: 2, Daily: true},
		},
		{
			name:     "invalid max_size uses default",
			input:    config.RotationConfig{MaxSize: "invalid", MaxAge: 21, MaxBackups: 4},
			expected: logging.RotationConfig{MaxSize: defaultSize, MaxAge: 21, MaxBackups: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseRotationConfig(tt.input))
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{
		Level:      "warn",
		Path:       "/tmp/ibackup.log",
		Components: map[string]string{"catalog": "debug"},
	}}

	t.Run("default", func(t *testing.T) {
		lc := loggingConfig(cfg, false, false)
		assert.Equal(t, "warn", lc.Level)
		assert.Equal(t, "/tmp/ibackup.log", lc.Path)
		assert.Equal(t, "error", lc.ConsoleLevel)
		assert.Equal(t, "debug", lc.Components["catalog"])
	})

	t.Run("verbose", func(t *testing.T) {
		lc := loggingConfig(cfg, true, false)
		assert.Equal(t, "debug", lc.Level)
		assert.Equal(t, "debug", lc.ConsoleLevel)
		assert.Nil(t, lc.Components)
	})

	t.Run("quiet", func(t *testing.T) {
		lc := loggingConfig(cfg, false, true)
		assert.Empty(t, lc.ConsoleLevel)
	})
}

func TestDevicePredicate(t *testing.T) {
	all := devicePredicate(&config.Config{})
	assert.True(t, all("notes"))

	udids := devicePredicate(&config.Config{Device: config.DeviceConfig{UDIDLengths: []int{25, 40}}})
	assert.True(t, udids(strings.Repeat("a", 25)))
	assert.True(t, udids(strings.Repeat("a", 40)))
	assert.False(t, udids("notes"))
}

func TestFormatEntry(t *testing.T) {
	entry := logging.LogEntry{
		Message: "descriptor not found",
		Args:    []interface{}{"path", "/b/Info.plist", "dangling"},
	}
	assert.Equal(t, "descriptor not found path=/b/Info.plist", formatEntry(entry))
}

func TestWarningCollector(t *testing.T) {
	wc := collectWarnings()

	log := logging.Get("collector-test")
	log.Info("not a warning")
	log.Warn("first", "n", 1)
	log.Error("not a warning either")
	log.Warn("second")

	// Give the reader a moment; Stop drains whatever is still buffered.
	time.Sleep(10 * time.Millisecond)
	got := wc.Stop()
	require.Len(t, got, 2)
	assert.Equal(t, "first n=1", got[0])
	assert.Equal(t, "second", got[1])
}
