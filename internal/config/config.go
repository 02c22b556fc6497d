package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Listener
	Host      string `env:"HOST" default:"0.0.0.0"`
	Port      int    `env:"PORT" default:"3001"`
	StaticDir string `env:"STATIC_DIR" default:"public"`
	GinMode   string `env:"GIN_MODE" default:"release"`

	// Relay tuning
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" default:"65536"`
	SendBuffer     int           `env:"SEND_BUFFER" default:"256"`
	WriteWait      time.Duration `env:"WRITE_WAIT" default:"10s"`
	PongWait       time.Duration `env:"PONG_WAIT" default:"60s"`
	RateLimit      float64       `env:"RATE_LIMIT" default:"0"` // messages/sec per connection, 0 disables
	RateBurst      int           `env:"RATE_BURST" default:"20"`

	// Redis fan-out between relay instances, empty URL disables it
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" default:"tonerelay:broadcast"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`

	// TLS
	TLSEnabled  bool   `env:"TLS_ENABLED" default:"false"`
	TLSCertPath string `env:"TLS_CERT_PATH" default:"./cert/server.pem"`
	TLSKeyPath  string `env:"TLS_KEY_PATH" default:"./cert/server-key.pem"`
}

// LoadConfig loads configuration from the environment, reading .env first
// when it exists. Variables already set in the environment win over .env.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		slog.Warn("env_file_not_loaded", "error", err)
	}

	config := &Config{}

	loadEnvString(&config.Host, "HOST", "0.0.0.0")
	if err := loadEnvInt(&config.Port, "PORT", 3001); err != nil {
		return nil, err
	}
	loadEnvString(&config.StaticDir, "STATIC_DIR", "public")
	loadEnvString(&config.GinMode, "GIN_MODE", "release")

	if err := loadEnvInt64(&config.MaxMessageSize, "MAX_MESSAGE_SIZE", 64*1024); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.SendBuffer, "SEND_BUFFER", 256); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.WriteWait, "WRITE_WAIT", 10*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.PongWait, "PONG_WAIT", 60*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.RateLimit, "RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateBurst, "RATE_BURST", 20); err != nil {
		return nil, err
	}

	loadEnvString(&config.RedisURL, "REDIS_URL", "")
	loadEnvString(&config.RedisChannel, "REDIS_CHANNEL", "tonerelay:broadcast")

	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "json")

	if err := loadEnvBool(&config.TLSEnabled, "TLS_ENABLED", false); err != nil {
		return nil, err
	}
	loadEnvString(&config.TLSCertPath, "TLS_CERT_PATH", "./cert/server.pem")
	loadEnvString(&config.TLSKeyPath, "TLS_KEY_PATH", "./cert/server-key.pem")

	return config, nil
}

func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt64(target *int64, key string, defaultValue int64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}
	if c.MaxMessageSize <= 0 {
		errors = append(errors, "MAX_MESSAGE_SIZE must be positive")
	}
	if c.SendBuffer <= 0 {
		errors = append(errors, "SEND_BUFFER must be positive")
	}
	if c.WriteWait <= 0 {
		errors = append(errors, "WRITE_WAIT must be positive")
	}
	// pings go out at 90% of PONG_WAIT, anything under a second is noise
	if c.PongWait < time.Second {
		errors = append(errors, "PONG_WAIT must be at least 1s")
	}
	if c.RateLimit < 0 {
		errors = append(errors, "RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errors = append(errors, "RATE_BURST must be at least 1 when RATE_LIMIT is set")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	// gin.SetMode panics on anything else
	validGinModes := []string{"debug", "release", "test"}
	if !contains(validGinModes, c.GinMode) {
		errors = append(errors, fmt.Sprintf("GIN_MODE must be one of: %s", strings.Join(validGinModes, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if c.TLSEnabled && (c.TLSCertPath == "" || c.TLSKeyPath == "") {
		errors = append(errors, "TLS_CERT_PATH and TLS_KEY_PATH are required when TLS_ENABLED is true")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClusterEnabled reports whether Redis fan-out between instances is configured.
func (c *Config) ClusterEnabled() bool {
	return c.RedisURL != ""
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
