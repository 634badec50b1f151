// Package config loads application configuration from environment
// variables with the TRADELEDGER prefix.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Security SecurityConfig `envconfig:"SECURITY"`
	Logging  LoggingConfig  `envconfig:"LOGGING"`
	Tax      TaxConfig      `envconfig:"TAX"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool     `envconfig:"ENABLE_CORS" default:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Format      string `envconfig:"FORMAT" default:"json"`
	Development bool   `envconfig:"DEVELOPMENT" default:"true"`
}

// TaxConfig contains the estimated marginal rates used to score lot
// matching methods. Rates are fractions, not percentages.
type TaxConfig struct {
	ShortTermRate float64 `envconfig:"SHORT_TERM_RATE" default:"0.24"`
	LongTermRate  float64 `envconfig:"LONG_TERM_RATE" default:"0.15"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("TRADELEDGER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Tax.ShortTermRate < 0 || c.Tax.ShortTermRate >= 1 {
		return fmt.Errorf("short term tax rate must be in [0,1): %v", c.Tax.ShortTermRate)
	}

	if c.Tax.LongTermRate < 0 || c.Tax.LongTermRate >= 1 {
		return fmt.Errorf("long term tax rate must be in [0,1): %v", c.Tax.LongTermRate)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Development: true,
		},
		Tax: TaxConfig{
			ShortTermRate: 0.24,
			LongTermRate:  0.15,
		},
	}
}
