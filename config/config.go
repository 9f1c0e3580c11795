package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the console.
type Config struct {
	App      AppConfig      `yaml:"app"`
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	// Environment is "development" or "production". The dev inspection
	// panel is inert in production.
	Environment  string `yaml:"environment"`
	DevPanelAddr string `yaml:"dev_panel_addr"`
}

// APIConfig holds remote API settings.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	ExpiryCheckInterval time.Duration `yaml:"expiry_check_interval"`
	ProfileStaleAfter   time.Duration `yaml:"profile_stale_after"`
	CookieName          string        `yaml:"cookie_name"`
	CookieTTL           time.Duration `yaml:"cookie_ttl"`
	AdminRole           string        `yaml:"admin_role"`
	MinimalRole         string        `yaml:"minimal_role"`
	LoginPath           string        `yaml:"login_path"`
	DashboardPath       string        `yaml:"dashboard_path"`
	// AuthPaths are the sign-in routes a signed-in operator is bounced from.
	AuthPaths []string `yaml:"auth_paths"`
	// RequireRoleAndCapability switches the evaluator to the AND combinator
	// when a caller passes both roles and capabilities.
	RequireRoleAndCapability bool `yaml:"require_role_and_capability"`
}

// StorageConfig selects the credential store backend.
type StorageConfig struct {
	// Driver is one of memory, sqlite, redis, postgres.
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	// Namespace prefixes every key so several operator profiles can share
	// a redis or postgres backend.
	Namespace string `yaml:"namespace"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File receives log output while the interactive shell owns the terminal.
	File string `yaml:"file"`
	// SQLitePath, when set, also keeps entries in a queryable SQLite file.
	SQLitePath    string `yaml:"sqlite_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load loads configuration from environment variables, after applying the
// YAML file named by CONSOLE_CONFIG if set. Environment variables win.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONSOLE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Environment:  "development",
			DevPanelAddr: "127.0.0.1:7070",
		},
		API: APIConfig{
			BaseURL: "http://localhost:3001",
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			ExpiryCheckInterval: 60 * time.Second,
			ProfileStaleAfter:   5 * time.Minute,
			CookieName:          "auth-token",
			CookieTTL:           7 * 24 * time.Hour,
			AdminRole:           "ADMIN",
			MinimalRole:         "USER",
			LoginPath:           "/login",
			DashboardPath:       "/dashboard",
			AuthPaths:           []string{"/login", "/register"},
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: defaultSQLitePath(),
			Namespace:  "default",
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			PoolSize:     10,
			MinIdleConns: 1,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "console",
			Database:        "console",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:         "info",
			RetentionDays: 7,
		},
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.App.Environment = getEnv("APP_ENV", c.App.Environment)
	c.App.DevPanelAddr = getEnv("DEV_PANEL_ADDR", c.App.DevPanelAddr)

	c.API.BaseURL = getEnv("API_URL", c.API.BaseURL)
	c.API.Timeout = getEnvDuration("API_TIMEOUT", c.API.Timeout)

	c.Session.ExpiryCheckInterval = getEnvDuration("SESSION_EXPIRY_CHECK_INTERVAL", c.Session.ExpiryCheckInterval)
	c.Session.ProfileStaleAfter = getEnvDuration("PROFILE_STALE_AFTER", c.Session.ProfileStaleAfter)
	c.Session.CookieName = getEnv("SESSION_COOKIE_NAME", c.Session.CookieName)
	c.Session.CookieTTL = getEnvDuration("SESSION_COOKIE_TTL", c.Session.CookieTTL)
	c.Session.AdminRole = getEnv("SESSION_ADMIN_ROLE", c.Session.AdminRole)
	c.Session.MinimalRole = getEnv("SESSION_MINIMAL_ROLE", c.Session.MinimalRole)
	c.Session.AuthPaths = getEnvSlice("SESSION_AUTH_PATHS", c.Session.AuthPaths)
	c.Session.RequireRoleAndCapability = getEnvBool("SESSION_REQUIRE_ROLE_AND_CAPABILITY", c.Session.RequireRoleAndCapability)

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.SQLitePath = getEnv("STORAGE_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.Namespace = getEnv("STORAGE_NAMESPACE", c.Storage.Namespace)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.MinIdleConns = getEnvInt("REDIS_MIN_IDLE_CONNS", c.Redis.MinIdleConns)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)
	c.Logging.SQLitePath = getEnv("LOG_SQLITE_PATH", c.Logging.SQLitePath)
	c.Logging.RetentionDays = getEnvInt("LOG_RETENTION_DAYS", c.Logging.RetentionDays)
}

// Validate rejects configurations the console cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "redis", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_URL is required")
	}
	if c.Session.ExpiryCheckInterval <= 0 {
		return fmt.Errorf("expiry check interval must be positive")
	}
	return nil
}

// IsProduction reports whether the console runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "./data/console.db"
	}
	return dir + "/transport-console/console.db"
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
