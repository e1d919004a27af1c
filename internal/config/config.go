// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backend names accepted by STORE_PRIMARY and STORE_SECONDARY.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env                   string  `mapstructure:"APP_ENV"`
	LogLevel              string  `mapstructure:"LOG_LEVEL"`
	APIBaseURL            string  `mapstructure:"API_BASE_URL"`
	RequestTimeoutSeconds int     `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	StorePrimary          string  `mapstructure:"STORE_PRIMARY"`
	StoreSecondary        string  `mapstructure:"STORE_SECONDARY"`
	SQLitePath            string  `mapstructure:"SQLITE_PATH"`
	RedisURL              string  `mapstructure:"REDIS_URL"`
	DBHost                string  `mapstructure:"DB_HOST"`
	DBPort                string  `mapstructure:"DB_PORT"`
	DBUser                string  `mapstructure:"DB_USER"`
	DBPassword            string  `mapstructure:"DB_PASSWORD"`
	DBName                string  `mapstructure:"DB_NAME"`
	DBSSLMode             string  `mapstructure:"DB_SSLMODE"`
	FeatureFlags          string  `mapstructure:"FEATURE_FLAGS"`
	TracingEnabled        bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter       string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint          string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio    float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
	MockPort              string  `mapstructure:"MOCK_PORT"`
	MockDBPath            string  `mapstructure:"MOCK_DB_PATH"`
	JWTSecret             string  `mapstructure:"JWT_SECRET"`
	AccessTokenTTLMinutes int     `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
	RefreshTokenTTLHours  int     `mapstructure:"REFRESH_TOKEN_TTL_HOURS"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the common case outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("API_BASE_URL", "http://127.0.0.1:8000/api")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 10)
	viper.SetDefault("STORE_PRIMARY", StoreSQLite)
	viper.SetDefault("STORE_SECONDARY", StoreMemory)
	viper.SetDefault("SQLITE_PATH", "campus.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "campus_creatives")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("FEATURE_FLAGS", "guest_mode=on,offline_posts=on,comment_cache=on")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
	viper.SetDefault("MOCK_PORT", "8000")
	viper.SetDefault("MOCK_DB_PATH", "file::memory:?cache=shared")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 5)
	viper.SetDefault("REFRESH_TOKEN_TTL_HOURS", 24)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.StorePrimary = strings.ToLower(strings.TrimSpace(c.StorePrimary))
	c.StoreSecondary = strings.ToLower(strings.TrimSpace(c.StoreSecondary))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	for name, backend := range map[string]string{"STORE_PRIMARY": c.StorePrimary, "STORE_SECONDARY": c.StoreSecondary} {
		switch backend {
		case StoreMemory, StoreSQLite, StoreRedis, StorePostgres:
		default:
			return fmt.Errorf("%s must be one of memory, sqlite, redis, postgres (got %q)", name, backend)
		}
	}
	if c.StorePrimary == StoreSQLite || c.StoreSecondary == StoreSQLite {
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTokenTTLMinutes <= 0 || c.RefreshTokenTTLHours <= 0 {
		return errors.New("token lifetimes must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	if isProduction {
		if !strings.HasPrefix(c.APIBaseURL, "https://") {
			return errors.New("API_BASE_URL must use https in production")
		}
		if c.usesPostgres() {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must not be 'disable' in production")
			}
		}
		if c.JWTSecret == defaultJWTSecret {
			log.Println("WARNING: JWT_SECRET is the default value; the mock API must not run in production.")
		}
	}

	return nil
}

// RequestTimeout returns the HTTP client timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL is the lifetime of access tokens issued by the mock API.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL is the lifetime of refresh tokens issued by the mock API.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHours) * time.Hour
}

// PostgresDSN builds the connection string for the postgres store.
func (c *Config) PostgresDSN() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		sslMode,
	)
}

func (c *Config) usesPostgres() bool {
	return c.StorePrimary == StorePostgres || c.StoreSecondary == StorePostgres
}
