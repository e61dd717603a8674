// Package config loads examscan configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Backend service
	ServerURL string
	Scope     string

	// Polling cadence
	PollInterval         time.Duration
	AnalysisPollInterval time.Duration

	// Notifications
	MaxNotifications int
	NotificationTTL  time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		ServerURL: getEnv("EXAMSCAN_SERVER_URL", "http://localhost:8080"),
		Scope:     getEnv("EXAMSCAN_SCOPE", ""),

		PollInterval:         getDuration("EXAMSCAN_POLL_INTERVAL", 3*time.Second),
		AnalysisPollInterval: getDuration("EXAMSCAN_ANALYSIS_POLL_INTERVAL", 2*time.Second),

		MaxNotifications: getInt("EXAMSCAN_MAX_NOTIFICATIONS", 20),
		NotificationTTL:  getDuration("EXAMSCAN_NOTIFICATION_TTL", 10*time.Second),

		LogFile:  getEnv("EXAMSCAN_LOG_FILE", "/tmp/examscan.log"),
		LogLevel: parseLogLevel(getEnv("EXAMSCAN_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
