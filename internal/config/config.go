package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	QuantapayEnv string
	AdminAPIKey  string

	// Signer selects the signature backend: "2", "3", or "5" for the
	// ML-DSA security levels, or "test" for the deterministic backend.
	SignerLevel string

	VaultAddr          string
	VaultToken         string
	VaultBootstrapPath string
	// VaultPassphrase is the local fallback when no HashiCorp Vault is
	// configured. One of the two must be set.
	VaultPassphrase string

	KeyRotationDays int
	ClockSkewSecs   int

	PolicyBundlePath string
	PolicyBundleID   string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		QuantapayEnv:           os.Getenv("QUANTAPAY_ENV"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		SignerLevel:            envDefault("SIGNER_LEVEL", "2"),
		VaultAddr:              os.Getenv("VAULT_ADDR"),
		VaultToken:             os.Getenv("VAULT_TOKEN"),
		VaultBootstrapPath:     envDefault("VAULT_BOOTSTRAP_PATH", "secret/data/quantapay/bootstrap"),
		VaultPassphrase:        os.Getenv("VAULT_PASSPHRASE"),
		KeyRotationDays:        envIntDefault("KEY_ROTATION_DAYS", 90),
		ClockSkewSecs:          envIntDefault("CLOCK_SKEW_SECONDS", 300),
		PolicyBundlePath:       os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:         envDefault("POLICY_BUNDLE_ID", "payments_v1"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) KeyRotationInterval() time.Duration {
	if c.KeyRotationDays <= 0 {
		return 0
	}
	return time.Duration(c.KeyRotationDays) * 24 * time.Hour
}

func (c Config) ClockSkew() time.Duration {
	if c.ClockSkewSecs <= 0 {
		return 0
	}
	return time.Duration(c.ClockSkewSecs) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
