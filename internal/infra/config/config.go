package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken        string
	DatabaseURL          string
	OwnerTelegramID      int64
	LogLevel             string
	Environment          string
	Location             *time.Location // wall clock the alarms are set in
	DefaultSnoozeMinutes int
	TimerRegisterTimeout time.Duration
	RecoveryConcurrency  int
	CronSpecReconcile    string // For re-arming alarms left without a wake-up
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	ownerIDStr := os.Getenv("OWNER_TELEGRAM_ID")
	if ownerIDStr == "" {
		return nil, fmt.Errorf("OWNER_TELEGRAM_ID is not set")
	}
	cfg.OwnerTelegramID, err = strconv.ParseInt(ownerIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OWNER_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	tz := os.Getenv("ALARM_TIMEZONE")
	if tz == "" {
		tz = "Local"
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid ALARM_TIMEZONE: %w", err)
	}

	cfg.DefaultSnoozeMinutes = 10
	if v := os.Getenv("DEFAULT_SNOOZE_MINUTES"); v != "" {
		cfg.DefaultSnoozeMinutes, err = strconv.Atoi(v)
		if err != nil || cfg.DefaultSnoozeMinutes <= 0 {
			return nil, fmt.Errorf("invalid DEFAULT_SNOOZE_MINUTES: %q", v)
		}
	}

	cfg.TimerRegisterTimeout = 5 * time.Second
	if v := os.Getenv("TIMER_REGISTER_TIMEOUT"); v != "" {
		cfg.TimerRegisterTimeout, err = time.ParseDuration(v)
		if err != nil || cfg.TimerRegisterTimeout <= 0 {
			return nil, fmt.Errorf("invalid TIMER_REGISTER_TIMEOUT: %q", v)
		}
	}

	cfg.RecoveryConcurrency = 4
	if v := os.Getenv("RECOVERY_CONCURRENCY"); v != "" {
		cfg.RecoveryConcurrency, err = strconv.Atoi(v)
		if err != nil || cfg.RecoveryConcurrency <= 0 {
			return nil, fmt.Errorf("invalid RECOVERY_CONCURRENCY: %q", v)
		}
	}

	cfg.CronSpecReconcile = os.Getenv("CRON_SPEC_RECONCILE")
	if cfg.CronSpecReconcile == "" {
		cfg.CronSpecReconcile = "*/15 * * * *" // Default: every 15 minutes
	}

	return cfg, nil
}
