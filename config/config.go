package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Version string

	// Session
	ChannelMax uint16
	LegacyPop  bool

	// Extensions
	EnableDLX           bool
	MaxDeadLetterCycles int

	// Metrics
	EnableMetrics    bool
	MetricsNamespace string

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from .env file, environment variables, or defaults
// Priority: environment variables > .env file > default values
func LoadConfig(version string) *Config {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	return &Config{
		Version: version,

		ChannelMax: getEnvAsUint16("OTTERMOCK_CHANNEL_MAX", 2048),
		LegacyPop:  getEnvAsBool("OTTERMOCK_LEGACY_POP", false),

		EnableDLX:           getEnvAsBool("OTTERMOCK_ENABLE_DLX", true),
		MaxDeadLetterCycles: getEnvAsInt("OTTERMOCK_MAX_DEAD_LETTER_CYCLES", 100),

		EnableMetrics:    getEnvAsBool("OTTERMOCK_ENABLE_METRICS", false),
		MetricsNamespace: getEnv("OTTERMOCK_METRICS_NAMESPACE", "ottermock"),

		LogLevel: getEnv("OTTERMOCK_LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s: %s, using default: %d\n", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsUint16(key string, defaultValue uint16) uint16 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 16)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s: %s, using default: %d\n", key, valueStr, defaultValue)
		return defaultValue
	}
	return uint16(value)
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s: %s, using default: %t\n", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
