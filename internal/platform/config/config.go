package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Addr               string
	Environment        string
	StoreDriver        string
	DatabaseURL        string
	SQLitePath         string
	MigrationsDir      string
	RunMigrations      bool
	RunSeed            bool
	DataEncryptionKey  string
	MaxBodyBytes       int64
	MetricsEnabled     bool
	TaxIncomeBasis     string
	StrictTaxTable     bool
	PayrollWorkers     int
	JobQueueSize       int
	RateLimitWrites    int
	RateLimitWindow    time.Duration
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// Load reads a .env file when present, then the process environment.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		Environment:        getEnv("APP_ENV", "development"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SQLitePath:         getEnv("SQLITE_PATH", "hrpay.db"),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", false),
		DataEncryptionKey:  getEnv("DATA_ENCRYPTION_KEY", ""),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		TaxIncomeBasis:     strings.ToLower(getEnv("TAX_INCOME_BASIS", "period")),
		StrictTaxTable:     getEnvBool("STRICT_TAX_TABLE", false),
		PayrollWorkers:     getEnvInt("PAYROLL_WORKERS", 4),
		JobQueueSize:       getEnvInt("JOB_QUEUE_SIZE", 32),
		RateLimitWrites:    getEnvInt("RATE_LIMIT_WRITES", 60),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
		}
	case StoreDriverMemory:
		if c.Environment == "production" {
			return fmt.Errorf("STORE_DRIVER memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, sqlite, memory")
	}
	if c.Environment == "production" && c.StoreDriver == StoreDriverPostgres && strings.TrimSpace(c.DataEncryptionKey) == "" {
		return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
	}
	if c.TaxIncomeBasis != "period" && c.TaxIncomeBasis != "annual" {
		return fmt.Errorf("TAX_INCOME_BASIS must be period or annual")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.PayrollWorkers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if c.JobQueueSize <= 0 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive")
	}
	if c.RateLimitWrites > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT_WRITES is set")
	}
	return nil
}
