// Package config provides environment-driven configuration for the
// pomodoro app commands.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Defaults for the app surface and control loop.
const (
	DefaultWebPort       = "8042"
	DefaultRobotPort     = "8000"
	ControlLoopFrequency = 50 // Hz
)

// RobotIP returns the robot IP from ROBOT_IP env var.
// Falls back to the provided default if not set.
func RobotIP(defaultIP string) string {
	if ip := os.Getenv("ROBOT_IP"); ip != "" {
		return ip
	}
	return defaultIP
}

// OpenAIKey returns the OpenAI API key from OPENAI_API_KEY.
// Empty means the voice assistant stays disabled.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// WebPort returns the dashboard/API port from POMODORO_PORT or the default.
func WebPort() string {
	if port := os.Getenv("POMODORO_PORT"); port != "" {
		return port
	}
	return DefaultWebPort
}

// DatabasePath returns the SQLite path from POMODORO_DB, defaulting to
// ~/.reachy_pomodoro/pomodoro.db like the dashboard expects.
func DatabasePath() string {
	if path := os.Getenv("POMODORO_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pomodoro.db"
	}
	return filepath.Join(home, ".reachy_pomodoro", "pomodoro.db")
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return level
	}
	return "info"
}

// VoiceEnabled reports whether the voice assistant should start.
// Defaults to true when an API key is present; VOICE_ENABLED=0 forces it off.
func VoiceEnabled() bool {
	if v := os.Getenv("VOICE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err == nil {
			return enabled
		}
	}
	return OpenAIKey() != ""
}

// VoiceName returns the assistant voice from VOICE_NAME or the default.
func VoiceName() string {
	if v := os.Getenv("VOICE_NAME"); v != "" {
		return v
	}
	return "coral"
}
