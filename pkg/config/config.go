package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Config holds all configuration for a batch run
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Database (optional: file-only runs leave URL empty)
	Database DatabaseConfig

	// Redis (calendar cache)
	Redis RedisConfig

	// Input/output locations
	Data DataConfig

	// Worker pool
	Harness HarnessConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was supplied
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

// DataConfig holds file locations and reference-data defaults
type DataConfig struct {
	Dir               string // root of calendars/, suspend/, features/
	CalendarFile      string // relative to Dir
	SuspensionFile    string // relative to Dir; absence is legal
	Exchange          string // SSE by default
	FeatureConfigPath string // YAML, empty = built-in defaults
	OutputFormat      string // csv | parquet | postgres
	ReferenceSource   string // file | postgres (calendar and suspensions)
}

// CalendarPath returns the absolute calendar file path
func (d DataConfig) CalendarPath() string {
	return filepath.Join(d.Dir, d.CalendarFile)
}

// SuspensionPath returns the absolute suspension file path
func (d DataConfig) SuspensionPath() string {
	return filepath.Join(d.Dir, d.SuspensionFile)
}

// HarnessConfig holds worker pool limits
type HarnessConfig struct {
	Workers      int
	UnitTimeout  time.Duration // 0 = none
	Budget       time.Duration // overall wall clock, 0 = none
	DispatchRate float64       // units started per second, 0 = unlimited
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			TTL:      getEnvAsDuration("REDIS_CALENDAR_TTL", "24h"),
		},

		Data: DataConfig{
			Dir:               getEnv("AIQ_DATA_DIR", "."),
			CalendarFile:      getEnv("AIQ_CALENDAR_FILE", "calendars/day.csv"),
			SuspensionFile:    getEnv("AIQ_SUSPENSION_FILE", "suspend/suspend.csv"),
			Exchange:          getEnv("AIQ_EXCHANGE", "SSE"),
			FeatureConfigPath: getEnv("AIQ_FEATURE_CONFIG", ""),
			OutputFormat:      getEnv("AIQ_OUTPUT_FORMAT", "csv"),
			ReferenceSource:   getEnv("AIQ_REFERENCE_SOURCE", "file"),
		},

		Harness: HarnessConfig{
			Workers:      getEnvAsInt("AIQ_WORKERS", 8),
			UnitTimeout:  getEnvAsDuration("AIQ_UNIT_TIMEOUT", "0s"),
			Budget:       getEnvAsDuration("AIQ_BUDGET", "0s"),
			DispatchRate: getEnvAsFloat("AIQ_DISPATCH_RATE", 0),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return &contracts.ConfigurationError{Field: "ENV", Message: "must be one of: development, staging, production"}
	}

	if c.Harness.Workers < 1 {
		return &contracts.ConfigurationError{Field: "AIQ_WORKERS", Message: "must be >= 1"}
	}

	if c.Harness.DispatchRate < 0 {
		return &contracts.ConfigurationError{Field: "AIQ_DISPATCH_RATE", Message: "must be >= 0"}
	}

	switch c.Data.OutputFormat {
	case "csv", "parquet":
	case "postgres":
		if !c.Database.Enabled() {
			return &contracts.ConfigurationError{Field: "DATABASE_URL", Message: "required when AIQ_OUTPUT_FORMAT=postgres"}
		}
	default:
		return &contracts.ConfigurationError{Field: "AIQ_OUTPUT_FORMAT", Message: "must be one of: csv, parquet, postgres"}
	}

	switch c.Data.ReferenceSource {
	case "file":
	case "postgres":
		if !c.Database.Enabled() {
			return &contracts.ConfigurationError{Field: "DATABASE_URL", Message: "required when AIQ_REFERENCE_SOURCE=postgres"}
		}
	default:
		return &contracts.ConfigurationError{Field: "AIQ_REFERENCE_SOURCE", Message: "must be one of: file, postgres"}
	}

	if c.Data.Exchange == "" {
		return &contracts.ConfigurationError{Field: "AIQ_EXCHANGE", Message: "required"}
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
