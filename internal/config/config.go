// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr   string
	DatabaseURL  string // empty selects the in-memory stores
	OTLPEndpoint string
	LogLevel     string

	LoanPeriodDays int

	LockWaitTimeout time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration

	// Admin inventory mutations are rate limited to this many per minute.
	AdminMutationsPerMinute int
}

// Load reads configuration from environment variables with defaults
// suitable for local development.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8084")
	v.SetDefault("database_url", "")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("loan_period_days", 7)
	v.SetDefault("lock_wait_timeout", 2*time.Second)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_base_delay", 10*time.Millisecond)
	v.SetDefault("admin_mutations_per_minute", 30)

	return &Config{
		ListenAddr:              v.GetString("listen_addr"),
		DatabaseURL:             v.GetString("database_url"),
		OTLPEndpoint:            v.GetString("otlp_endpoint"),
		LogLevel:                v.GetString("log_level"),
		LoanPeriodDays:          v.GetInt("loan_period_days"),
		LockWaitTimeout:         v.GetDuration("lock_wait_timeout"),
		RetryAttempts:           v.GetInt("retry_attempts"),
		RetryBaseDelay:          v.GetDuration("retry_base_delay"),
		AdminMutationsPerMinute: v.GetInt("admin_mutations_per_minute"),
	}
}
