package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Device limit policies applied when a login would exceed the tier's device limit
const (
	DeviceLimitReject             = "reject"
	DeviceLimitRejectAndBlacklist = "reject_and_blacklist"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType               string // mysql, postgres, sqlite, sqlite-pure, sqlserver
	DBHost               string
	DBPort               string
	DBDatabase           string
	DBAppUser            string
	DBAppPassword        string
	DBAppConnectionLimit int

	// Logging
	LogLevel  string
	LogFormat string

	// Credential issuance
	JWTSecret string
	JWTIssuer string
	JWTExpiry time.Duration

	// Seed admin account, optional
	AdminEmail    string
	AdminPassword string

	Security  SecurityConfig
	Ingestion IngestionConfig

	// Related documents term vector cache size
	RelatedCacheSize int
}

// SecurityConfig holds the login lockout and device limit settings
type SecurityConfig struct {
	MaxFailedLoginAttempts int
	FailedLoginWindow      time.Duration
	AccountLockout         time.Duration
	MaxDevicesSimple       int
	MaxDevicesPro          int
	DeviceLimitPolicy      string
}

// IngestionConfig holds the document ingestion settings
type IngestionConfig struct {
	Enabled   bool
	InputDir  string
	DoneDir   string
	FailedDir string
	Schedule  string
	OnStartup bool
	Watch     bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "3000"),
		DBType:               getEnv("DB_TYPE", "mysql"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "3306"),
		DBDatabase:           getEnv("DB_DATABASE", ""),
		DBAppUser:            getEnv("DB_APP_USER", ""),
		DBAppPassword:        getEnv("DB_APP_PASSWORD", ""),
		DBAppConnectionLimit: getEnvAsInt("DB_APP_CONNECTION_LIMIT", 5),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTIssuer:            getEnv("JWT_ISSUER", "juriiq"),
		JWTExpiry:            time.Duration(getEnvAsInt("JWT_EXPIRY_MINUTES", 1440)) * time.Minute,
		AdminEmail:           getEnv("ADMIN_EMAIL", ""),
		AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
		Security: SecurityConfig{
			MaxFailedLoginAttempts: getEnvAsInt("MAX_FAILED_LOGIN_ATTEMPTS", 5),
			FailedLoginWindow:      time.Duration(getEnvAsInt("FAILED_LOGIN_WINDOW_MINUTES", 15)) * time.Minute,
			AccountLockout:         time.Duration(getEnvAsInt("ACCOUNT_LOCKOUT_MINUTES", 30)) * time.Minute,
			MaxDevicesSimple:       getEnvAsInt("MAX_DEVICES_SIMPLE", 1),
			MaxDevicesPro:          getEnvAsInt("MAX_DEVICES_PRO", 4),
			DeviceLimitPolicy:      strings.ToLower(getEnv("DEVICE_LIMIT_POLICY", DeviceLimitReject)),
		},
		Ingestion: IngestionConfig{
			Enabled:   getEnvAsBool("INGEST_ENABLED", true),
			InputDir:  getEnv("INGEST_INPUT_DIR", "./documents_to_process"),
			DoneDir:   getEnv("INGEST_DONE_DIR", "./documents_done"),
			FailedDir: getEnv("INGEST_FAILED_DIR", "./documents_failed"),
			Schedule:  getEnv("INGEST_SCHEDULE", "@daily"),
			OnStartup: getEnvAsBool("INGEST_ON_STARTUP", true),
			Watch:     getEnvAsBool("INGEST_WATCH", false),
		},
		RelatedCacheSize: getEnvAsInt("RELATED_CACHE_SIZE", 512),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBAppUser == "" && !cfg.IsSQLite() {
		return nil, fmt.Errorf("DB_APP_USER is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if err := cfg.Security.Validate(); err != nil {
		return nil, err
	}
	if cfg.Ingestion.InputDir == cfg.Ingestion.DoneDir || cfg.Ingestion.InputDir == cfg.Ingestion.FailedDir {
		return nil, fmt.Errorf("INGEST_INPUT_DIR must differ from INGEST_DONE_DIR and INGEST_FAILED_DIR")
	}

	return cfg, nil
}

// IsSQLite reports whether the configured database is a SQLite file
func (c *Config) IsSQLite() bool {
	return c.DBType == "sqlite" || c.DBType == "sqlite-pure"
}

// Validate checks the security settings
func (s SecurityConfig) Validate() error {
	if s.MaxFailedLoginAttempts < 1 {
		return fmt.Errorf("MAX_FAILED_LOGIN_ATTEMPTS must be at least 1")
	}
	if s.FailedLoginWindow <= 0 {
		return fmt.Errorf("FAILED_LOGIN_WINDOW_MINUTES must be positive")
	}
	if s.AccountLockout <= 0 {
		return fmt.Errorf("ACCOUNT_LOCKOUT_MINUTES must be positive")
	}
	if s.MaxDevicesSimple < 1 || s.MaxDevicesPro < 1 {
		return fmt.Errorf("MAX_DEVICES_SIMPLE and MAX_DEVICES_PRO must be at least 1")
	}
	switch s.DeviceLimitPolicy {
	case DeviceLimitReject, DeviceLimitRejectAndBlacklist:
	default:
		return fmt.Errorf("DEVICE_LIMIT_POLICY must be %q or %q, got %q",
			DeviceLimitReject, DeviceLimitRejectAndBlacklist, s.DeviceLimitPolicy)
	}
	return nil
}

// DefaultSecurity returns the stock lockout and device settings
func DefaultSecurity() SecurityConfig {
	return SecurityConfig{
		MaxFailedLoginAttempts: 5,
		FailedLoginWindow:      15 * time.Minute,
		AccountLockout:         30 * time.Minute,
		MaxDevicesSimple:       1,
		MaxDevicesPro:          4,
		DeviceLimitPolicy:      DeviceLimitReject,
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
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

// getEnvAsBool gets an environment variable as a boolean or returns a default value
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
