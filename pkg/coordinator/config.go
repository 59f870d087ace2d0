package coordinator

import (
	"os"
	"strconv"
	"time"
)

// Config holds Coordinator service configuration.
type Config struct {
	Host         string
	Port         int
	JWTSecret    string
	RedisURL     string
	ArchiveDir   string
	ParticipantURLs map[string]string // account name -> base URL, e.g. {"A": "http://account-a:8000"}

	ParticipantTimeout   time.Duration // per-RPC timeout, ~5s
	PairLockAcquireWait  time.Duration // ~5s
	PairLockHoldTimeout  time.Duration // ~15s
	RecoveryInterval     time.Duration // ~2s
	RecoveryRollbackAge  time.Duration // default 10s, RECOVERY_ROLLBACK_TIMEOUT_SECONDS

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
}

// DefaultConfig returns a Config with reasonable standalone defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:                "0.0.0.0",
		Port:                8080,
		JWTSecret:           "dev-secret",
		RedisURL:            "redis://localhost:6379/0",
		ArchiveDir:          "./data/archive",
		ParticipantURLs:     map[string]string{},
		ParticipantTimeout:  5 * time.Second,
		PairLockAcquireWait: 5 * time.Second,
		PairLockHoldTimeout: 15 * time.Second,
		RecoveryInterval:    2 * time.Second,
		RecoveryRollbackAge: 10 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		IdleTimeout:         120 * time.Second,
		MaxRequestSize:      1 << 20,
	}
}

// ConfigFromEnv overlays recognized environment variables onto
// DefaultConfig()'s values.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("COORDINATOR_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("COORDINATOR_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("PARTICIPANT_A_URL"); v != "" {
		cfg.ParticipantURLs["A"] = v
	}
	if v := os.Getenv("PARTICIPANT_B_URL"); v != "" {
		cfg.ParticipantURLs["B"] = v
	}
	if v := os.Getenv("RECOVERY_ROLLBACK_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RecoveryRollbackAge = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}

	return cfg
}
