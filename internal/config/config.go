// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config is the service configuration. Keys come from config.yml, an optional
// config.<APP_ENV>.yml profile, then the environment.
type Config struct {
	Env         string `mapstructure:"APP_ENV"`
	Port        string `mapstructure:"PORT"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTTTLHours int    `mapstructure:"JWT_TTL_HOURS"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBReadHost               string `mapstructure:"DB_READ_HOST"`
	DBReadPort               string `mapstructure:"DB_READ_PORT"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`

	RedisURL            string `mapstructure:"REDIS_URL"`
	FeedCacheTTLSeconds int    `mapstructure:"FEED_CACHE_TTL_SECONDS"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	CookieSecure   bool   `mapstructure:"COOKIE_SECURE"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`

	// SeedOnStart fills an empty database with demo accounts at boot.
	SeedOnStart bool `mapstructure:"SEED_ON_START"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; environment variables alone are enough.
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

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

var defaults = map[string]any{
	"APP_ENV":                      "development",
	"PORT":                         "8080",
	"JWT_SECRET":                   defaultJWTSecret,
	"JWT_TTL_HOURS":                24 * 7,
	"DB_DRIVER":                    "postgres",
	"DB_HOST":                      "localhost",
	"DB_PORT":                      "5432",
	"DB_USER":                      "user",
	"DB_PASSWORD":                  "password",
	"DB_NAME":                      "microblogs",
	"DB_SSLMODE":                   "disable",
	"DB_READ_HOST":                 "",
	"DB_READ_PORT":                 "5432",
	"DB_MAX_OPEN_CONNS":            25,
	"DB_MAX_IDLE_CONNS":            5,
	"DB_CONN_MAX_LIFETIME_MINUTES": 5,
	"DB_SCHEMA_MODE":               "",
	"REDIS_URL":                    "localhost:6379",
	"FEED_CACHE_TTL_SECONDS":       30,
	"ALLOWED_ORIGINS":              "http://localhost:5173,http://localhost:3000",
	"COOKIE_SECURE":                false,
	"TRACING_ENABLED":              false,
	"TRACING_EXPORTER":             "stdout",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "localhost:4318",
	"TRACING_SAMPLER_RATIO":        1.0,
	"SEED_ON_START":                false,
}

// setDefaults also registers every key with viper, which Unmarshal needs to
// see keys that only exist in the environment.
func setDefaults() {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

// JWTTTL returns the session token lifetime.
func (c *Config) JWTTTL() time.Duration {
	if c.JWTTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// FeedCacheTTL returns how long feed pages stay in Redis. Zero disables caching.
func (c *Config) FeedCacheTTL() time.Duration {
	if c.FeedCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.FeedCacheTTLSeconds) * time.Second
}

// Validate rejects configs the service cannot run with. Production gets
// stricter rules; risky but workable settings only log a warning.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("PORT is required")
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET is required")
	case c.TracingSamplerRatio < 0 || c.TracingSamplerRatio > 1:
		return errors.New("TRACING_SAMPLER_RATIO must be between 0 and 1")
	}
	switch strings.ToLower(c.DBDriver) {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if !c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters")
		}
		return nil
	}

	var errs []error
	if c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be a non-default secret of at least 32 characters in production"))
	}
	if c.SeedOnStart {
		errs = append(errs, errors.New("SEED_ON_START is not allowed in production"))
	}
	if c.DBDriver == "sqlite" {
		errs = append(errs, errors.New("DB_DRIVER=sqlite is not supported in production"))
	}
	if c.DBPassword == "" || c.DBPassword == "password" {
		errs = append(errs, errors.New("a strong DB_PASSWORD is required in production"))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	warnIf(c.DBSSLMode == "" || c.DBSSLMode == "disable", "DB_SSLMODE is disabled in production")
	warnIf(!c.CookieSecure, "COOKIE_SECURE is false in production; session cookies travel over plain HTTP")
	warnIf(c.AllowedOrigins == "*", "ALLOWED_ORIGINS is * in production")
	return nil
}

func warnIf(cond bool, msg string) {
	if cond {
		log.Println("WARNING: " + msg)
	}
}
