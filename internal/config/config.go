package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all player configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	// Backend API.
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Guard control channel the kiosk page talks to.
	GuardListenAddr string
	// AllowedOrigins controls guard HTTP CORS and WebSocket origin
	// validation. Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	// Session timing.
	SnapshotInterval time.Duration
	AutosaveDebounce time.Duration
	SavingGrace      time.Duration
	MaxWarnings      int

	// Violation probes.
	StallProbeEnabled    bool
	StallProbeInterval   time.Duration
	StallThreshold       time.Duration
	ConnectivityInterval time.Duration

	// Kiosk and lockdown.
	KioskEnabled     bool
	BrowserPath      string
	ExamPageURL      string
	LockdownEnabled  bool
	LockdownInterval time.Duration
	AllowedApps      []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080/api"),
		APIToken:   getEnv("API_TOKEN", ""),
		APITimeout: getEnvDuration("API_TIMEOUT", 10*time.Second),

		GuardListenAddr: getEnv("GUARD_LISTEN_ADDR", "localhost:12345"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "")),

		SnapshotInterval: getEnvDuration("SNAPSHOT_INTERVAL", 30*time.Second),
		AutosaveDebounce: getEnvDuration("AUTOSAVE_DEBOUNCE", time.Second),
		SavingGrace:      getEnvDuration("SAVING_GRACE", time.Second),
		MaxWarnings:      getEnvInt("MAX_WARNINGS", 3),

		StallProbeEnabled:    getEnvBool("STALL_PROBE_ENABLED", true),
		StallProbeInterval:   getEnvDuration("STALL_PROBE_INTERVAL", time.Second),
		StallThreshold:       getEnvDuration("STALL_THRESHOLD", 100*time.Millisecond),
		ConnectivityInterval: getEnvDuration("CONNECTIVITY_INTERVAL", 10*time.Second),

		KioskEnabled:     getEnvBool("KIOSK_ENABLED", true),
		BrowserPath:      getEnv("BROWSER_PATH", ""),
		ExamPageURL:      getEnv("EXAM_PAGE_URL", "http://localhost:5173/exam"),
		LockdownEnabled:  getEnvBool("LOCKDOWN_ENABLED", false),
		LockdownInterval: getEnvDuration("LOCKDOWN_INTERVAL", 5*time.Second),
		AllowedApps:      splitList(getEnv("ALLOWED_APPS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// splitList splits a comma-separated string into a trimmed slice.
// Returns nil if the input is empty.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
