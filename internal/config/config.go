package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Provider  ProviderConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host         string `mapstructure:"REDIS_HOST"`
	Port         string `mapstructure:"REDIS_PORT"`
	Password     string `mapstructure:"REDIS_PASSWORD"`
	DB           int    `mapstructure:"REDIS_DB"`
	EventChannel string `mapstructure:"REDIS_EVENT_CHANNEL"`
}

type SchedulerConfig struct {
	Timezone string        `mapstructure:"SCHEDULER_TIMEZONE"`
	LockTTL  time.Duration `mapstructure:"SCHEDULER_LOCK_TTL"`
	Products []string      `mapstructure:"SCHEDULER_PRODUCTS"`
}

type BusinessConfig struct {
	DelinquencyGraceDays int `mapstructure:"DELINQUENCY_GRACE_DAYS"`
	CollectionLeadDays   int `mapstructure:"COLLECTION_LEAD_DAYS"`
}

type ProviderConfig struct {
	BaseURL string        `mapstructure:"PROVIDER_BASE_URL"`
	Timeout time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// A local .env is optional; environment variables win.
	_ = godotenv.Load()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_EVENT_CHANNEL", "billing.events")
	viper.SetDefault("SCHEDULER_TIMEZONE", "America/Chicago")
	viper.SetDefault("SCHEDULER_LOCK_TTL", "10m")
	viper.SetDefault("SCHEDULER_PRODUCTS", []string{"homeowners"})
	viper.SetDefault("DELINQUENCY_GRACE_DAYS", 0)
	viper.SetDefault("COLLECTION_LEAD_DAYS", 0)
	viper.SetDefault("PROVIDER_BASE_URL", "http://localhost:9090")
	viper.SetDefault("PROVIDER_TIMEOUT", "30s")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Scheduler.LockTTL <= 0 {
		return fmt.Errorf("SCHEDULER_LOCK_TTL must be greater than 0")
	}

	if len(c.Scheduler.Products) == 0 {
		return fmt.Errorf("SCHEDULER_PRODUCTS must name at least one product")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// SchedulerLocation returns the scheduler's timezone location.
func (c *Config) SchedulerLocation() *time.Location {
	loc, _ := time.LoadLocation(c.Scheduler.Timezone)
	return loc
}
