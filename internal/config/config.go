package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all engine settings, read from the environment with the
// reference defaults.
type Config struct {
	Port      string
	UploadDir string

	// Planner (OpenAI-compatible chat completions endpoint)
	PlannerBaseURL   string
	PlannerAPIKey    string
	PlannerModel     string
	PlannerPingModel string
	PlannerHTMLCap   int

	// Worker loop
	ClaimInterval time.Duration
	ErrorBackoff  time.Duration

	// Suspend/resume and manual pause
	ResumePollInterval time.Duration
	ResumeTimeout      time.Duration
	PausePollInterval  time.Duration

	// Browser
	ActionSettle    time.Duration
	BrowserHeadless bool
	BrowserKeepOpen bool
}

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),

		PlannerBaseURL:   getEnv("PLANNER_BASE_URL", "https://openrouter.ai/api/v1"),
		PlannerAPIKey:    os.Getenv("OPENROUTER_API_KEY"),
		PlannerModel:     getEnv("PLANNER_MODEL", "openai/gpt-4o-mini"),
		PlannerPingModel: getEnv("PLANNER_PING_MODEL", "openai/gpt-3.5-turbo"),
		PlannerHTMLCap:   getEnvInt("PLANNER_HTML_CAP", 150000),

		ClaimInterval: getEnvDuration("CLAIM_INTERVAL", 2*time.Second),
		ErrorBackoff:  getEnvDuration("ERROR_BACKOFF", 5*time.Second),

		ResumePollInterval: getEnvDuration("RESUME_POLL_INTERVAL", 3*time.Second),
		ResumeTimeout:      getEnvDuration("RESUME_TIMEOUT", 10*time.Minute),
		PausePollInterval:  getEnvDuration("PAUSE_POLL_INTERVAL", 2*time.Second),

		ActionSettle:    getEnvDuration("ACTION_SETTLE", 500*time.Millisecond),
		BrowserHeadless: getEnvBool("BROWSER_HEADLESS", false),
		BrowserKeepOpen: getEnvBool("BROWSER_KEEP_OPEN", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
