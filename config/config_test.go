package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigWithDefaults(t *testing.T) {
	// Clear any environment variables that might interfere
	os.Clearenv()

	config := LoadConfig("test-version")

	assert.Equal(t, "test-version", config.Version)
	assert.Equal(t, uint16(2048), config.ChannelMax)
	assert.False(t, config.LegacyPop)
	assert.True(t, config.EnableDLX)
	assert.Equal(t, 100, config.MaxDeadLetterCycles)
	assert.False(t, config.EnableMetrics)
	assert.Equal(t, "ottermock", config.MetricsNamespace)
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	t.Setenv("OTTERMOCK_CHANNEL_MAX", "16")
	t.Setenv("OTTERMOCK_LEGACY_POP", "true")
	t.Setenv("OTTERMOCK_ENABLE_DLX", "false")
	t.Setenv("OTTERMOCK_MAX_DEAD_LETTER_CYCLES", "7")
	t.Setenv("OTTERMOCK_ENABLE_METRICS", "1")
	t.Setenv("OTTERMOCK_METRICS_NAMESPACE", "sim")
	t.Setenv("OTTERMOCK_LOG_LEVEL", "debug")

	config := LoadConfig("v1")

	assert.Equal(t, uint16(16), config.ChannelMax)
	assert.True(t, config.LegacyPop)
	assert.False(t, config.EnableDLX)
	assert.Equal(t, 7, config.MaxDeadLetterCycles)
	assert.True(t, config.EnableMetrics)
	assert.Equal(t, "sim", config.MetricsNamespace)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestLoadConfigWithInvalidValues(t *testing.T) {
	t.Setenv("OTTERMOCK_CHANNEL_MAX", "70000")
	t.Setenv("OTTERMOCK_LEGACY_POP", "maybe")

	config := LoadConfig("")

	assert.Equal(t, uint16(2048), config.ChannelMax, "out of range falls back to default")
	assert.False(t, config.LegacyPop, "unparseable bool falls back to default")
}
