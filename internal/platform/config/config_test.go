package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		StoreDriver:    StoreDriverPostgres,
		DatabaseURL:    "postgres://localhost/hrpay",
		Environment:    "development",
		TaxIncomeBasis: "period",
		MaxBodyBytes:   4096,
		PayrollWorkers: 2,
		JobQueueSize:   8,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("TAX_INCOME_BASIS", "")
	t.Setenv("PAYROLL_WORKERS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg := Load()
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.StoreDriver)
	}
	if cfg.TaxIncomeBasis != "period" {
		t.Fatalf("expected period basis, got %q", cfg.TaxIncomeBasis)
	}
	if cfg.PayrollWorkers != 4 {
		t.Fatalf("expected fallback workers 4, got %d", cfg.PayrollWorkers)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitWrites != 60 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("unexpected rate limit defaults %d/%v", cfg.RateLimitWrites, cfg.RateLimitWindow)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(*Config){
		"missing database url": func(c *Config) { c.DatabaseURL = "" },
		"unknown driver":       func(c *Config) { c.StoreDriver = "mongo" },
		"bad tax basis":        func(c *Config) { c.TaxIncomeBasis = "weekly" },
		"tiny body limit":      func(c *Config) { c.MaxBodyBytes = 10 },
		"no workers":           func(c *Config) { c.PayrollWorkers = 0 },
		"rate limit no window": func(c *Config) { c.RateLimitWrites = 10; c.RateLimitWindow = 0 },
		"memory in production": func(c *Config) { c.StoreDriver = StoreDriverMemory; c.Environment = "production" },
		"production without key": func(c *Config) {
			c.Environment = "production"
			c.DataEncryptionKey = ""
		},
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateSQLiteNeedsNoDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.StoreDriver = StoreDriverSQLite
	cfg.DatabaseURL = ""
	cfg.SQLitePath = ":memory:"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected sqlite config to validate, got %v", err)
	}
}
