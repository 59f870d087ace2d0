package participant

import (
	"os"
	"strconv"
	"time"
)

// Config holds Participant service configuration.
type Config struct {
	AccountName     string        // ACCOUNT_NAME
	InitialBalance  int64         // INITIAL_BALANCE, seeded only if no state file exists
	DataPath        string        // DATA_PATH, directory containing state.json
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxRequestSize  int64
}

// DefaultConfig returns a Config with sensible defaults, mirroring the
// service-local DefaultConfig() constructors used throughout this codebase.
func DefaultConfig() *Config {
	return &Config{
		AccountName:    "A",
		InitialBalance: 1000,
		DataPath:       "/data",
		Host:           "0.0.0.0",
		Port:           8000,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

// ConfigFromEnv overlays environment variables recognised by the Participant
// service onto DefaultConfig()'s values.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("ACCOUNT_NAME"); v != "" {
		cfg.AccountName = v
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.InitialBalance = n
		}
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("PARTICIPANT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PARTICIPANT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}

	return cfg
}
