package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret = "your-secret-key-change-in-production"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	Environment   string
	ListenAddr    string
	StoreBackend  string
	DatabaseDSN   string
	DBMaxConns    int32
	StoreTimeout  time.Duration
	EnableMetrics bool
	LogLevel      string
	ImportMapping string

	// PrincipalsFile seeds the memory backend's directory
	PrincipalsFile string
}

func Load() *Config {
	config := &Config{
		JWTSecret:     getEnv("JWT_SECRET", defaultJWTSecret),
		JWTIssuer:     getEnv("JWT_ISS", "asset-custody-api"),
		JWTAudience:   getEnv("JWT_AUD", "asset-custody-api"),
		JWTExpiry:     24 * time.Hour, // Default to 24 hours
		Environment:   getEnv("ENVIRONMENT", "development"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseDSN:   os.Getenv("DB_DSN"),
		DBMaxConns:    10,
		StoreTimeout:  5 * time.Second,
		EnableMetrics: os.Getenv("ENABLE_METRICS") == "true",
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ImportMapping: getEnv("IMPORT_MAPPING", "configs/mapping/assets.yaml"),

		PrincipalsFile: os.Getenv("PRINCIPALS_FILE"),
	}

	// Parse durations and numbers from environment if provided
	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			config.JWTExpiry = expiry
		}
	}
	if timeoutStr := os.Getenv("STORE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			config.StoreTimeout = timeout
		}
	}
	if connsStr := os.Getenv("DB_MAX_CONNS"); connsStr != "" {
		if conns, err := strconv.ParseInt(connsStr, 10, 32); err == nil && conns > 0 {
			config.DBMaxConns = int32(conns)
		}
	}

	return config
}

// LoadEnvFile reads KEY=VALUE pairs from the given files into the process
// environment. Variables already set are left alone; missing files are ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadAndValidate loads .env, then the environment, and validates the result
func LoadAndValidate() (*Config, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be changed from the default in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISS cannot be empty")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT_AUD cannot be empty")
	}
	if c.JWTExpiry < time.Minute {
		return errors.New("JWT_EXPIRY must be at least 1 minute")
	}
	if c.JWTExpiry > 30*24*time.Hour {
		return errors.New("JWT_EXPIRY cannot exceed 30 days")
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("DB_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.StoreBackend, BackendMemory, BackendPostgres)
	}

	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
