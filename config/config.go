package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Security    SecurityConfig    `json:"security"`
	Enforcement EnforcementConfig `json:"enforcement"`
	Scheduler   SchedulerConfig   `json:"scheduler"`
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path         string `json:"path"`
	CacheTTLSecs int    `json:"cache_ttl_secs"` // read-cache lifetime, 0 disables
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AdminKey string `json:"admin_key"` // API key for admin endpoints
}

// EnforcementConfig selects and configures the enforcement gateway driver
type EnforcementConfig struct {
	Driver  string `json:"driver"` // "deviceapi" or "passive"
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// SchedulerConfig contains scheduler settings
type SchedulerConfig struct {
	IntervalSecs int `json:"interval_secs"`
}

// TelegramConfig configures the optional outbound notifier
type TelegramConfig struct {
	Token string `json:"token"` // empty disables notifications
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "text"
}

// CacheTTL returns the read-cache lifetime
func (d DatabaseConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLSecs) * time.Second
}

// Interval returns the scheduler tick interval
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSecs) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}
	if c.Database.CacheTTLSecs < 0 {
		return fmt.Errorf("%w: cache TTL cannot be negative", ErrInvalidConfig)
	}

	if c.Security.AdminKey == "" {
		return fmt.Errorf("%w: admin key is required", ErrInvalidConfig)
	}

	switch c.Enforcement.Driver {
	case "":
		c.Enforcement.Driver = "passive" // default
	case "passive":
	case "deviceapi":
		if c.Enforcement.BaseURL == "" {
			return fmt.Errorf("%w: enforcement base URL is required for deviceapi", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown enforcement driver %q", ErrInvalidConfig, c.Enforcement.Driver)
	}

	if c.Scheduler.IntervalSecs <= 0 {
		c.Scheduler.IntervalSecs = 1 // default: countdown-grade tick
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("FOCUSLOCK_HOST", "0.0.0.0"),
			Port: getEnvInt("FOCUSLOCK_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path:         getEnv("FOCUSLOCK_DB_PATH", "./focuslock.db"),
			CacheTTLSecs: getEnvInt("FOCUSLOCK_CACHE_TTL_SECS", 5),
		},
		Security: SecurityConfig{
			AdminKey: getEnv("FOCUSLOCK_ADMIN_KEY", ""),
		},
		Enforcement: EnforcementConfig{
			Driver:  getEnv("FOCUSLOCK_ENFORCEMENT_DRIVER", "passive"),
			BaseURL: getEnv("FOCUSLOCK_ENFORCEMENT_BASE_URL", ""),
			APIKey:  getEnv("FOCUSLOCK_ENFORCEMENT_API_KEY", ""),
		},
		Scheduler: SchedulerConfig{
			IntervalSecs: getEnvInt("FOCUSLOCK_SCHEDULER_INTERVAL_SECS", 1),
		},
		Telegram: TelegramConfig{
			Token: getEnv("FOCUSLOCK_TELEGRAM_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("FOCUSLOCK_LOG_LEVEL", "info"),
			Format: getEnv("FOCUSLOCK_LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		fmt.Sscanf(value, "%d", &intVal)
		return intVal
	}
	return defaultValue
}
