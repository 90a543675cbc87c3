// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	ListenAddr  string

	// StoreDriver selects the document-store backend: postgres, sqlite,
	// or memory (dev only; nothing survives a restart).
	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	// RedisAddr enables the rate limiter when set.
	RedisAddr         string
	RateLimitCapacity int
	RateLimitRefill   int

	MaxBodyBytes int64

	TLSCertFile string
	TLSKeyFile  string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:       os.Getenv("APP_ENV"),
		ListenAddr:        getenv("LISTEN_ADDR", ":8080"),
		StoreDriver:       getenv("STORE_DRIVER", "sqlite"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getenv("SQLITE_PATH", "bank.db"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RateLimitCapacity: getenvInt("RATE_LIMIT_CAPACITY", 20),
		RateLimitRefill:   getenvInt("RATE_LIMIT_REFILL_PER_SEC", 10),
		MaxBodyBytes:      int64(getenvInt("MAX_BODY_BYTES", 1<<20)),
		TLSCertFile:       os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:        os.Getenv("TLS_KEY_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete for the chosen
// backend.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
	case "memory":
		if c.Environment == "production" || c.Environment == "staging" {
			return errors.New("STORE_DRIVER=memory is not allowed in " + c.Environment)
		}
	default:
		return errors.New("STORE_DRIVER must be postgres, sqlite, or memory")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
