package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Errorf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
	}
	if cfg.SQLitePath != "bank.db" {
		t.Errorf("SQLitePath = %q, want bank.db", cfg.SQLitePath)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 1<<20)
	}
	if cfg.RateLimitCapacity != 20 || cfg.RateLimitRefill != 10 {
		t.Errorf("rate limit defaults = %d/%d, want 20/10", cfg.RateLimitCapacity, cfg.RateLimitRefill)
	}
}

func TestLoadRequiresAppEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing APP_ENV")
	}
	if !strings.Contains(err.Error(), "APP_ENV") {
		t.Errorf("error %q should name APP_ENV", err)
	}
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/bank")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/bank" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestMemoryDriverForbiddenInProduction(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	for _, env := range []string{"production", "staging"} {
		t.Setenv("APP_ENV", env)
		if _, err := Load(); err == nil {
			t.Errorf("memory driver should be rejected in %s", env)
		}
	}

	t.Setenv("APP_ENV", "development")
	if _, err := Load(); err != nil {
		t.Errorf("memory driver should be allowed in development: %v", err)
	}
}

func TestUnknownDriverRejected(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "mongodb")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestTLSFilesMustBePaired(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("TLS_CERT_FILE", "/etc/certs/server.crt")
	t.Setenv("TLS_KEY_FILE", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for cert without key")
	}

	t.Setenv("TLS_KEY_FILE", "/etc/certs/server.key")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with paired TLS files: %v", err)
	}
}
