package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:        "development",
		Port:       "8080",
		JWTSecret:  "secure-secret-at-least-32-chars-long",
		DBDriver:   "postgres",
		DBPassword: "secure-password",
		DBSSLMode:  "require",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"sqlite driver in development", func(c *Config) { c.DBDriver = "sqlite" }, false},
		{"sampler ratio out of range", func(c *Config) { c.TracingSamplerRatio = 1.5 }, true},
		{"production ok", func(c *Config) { c.Env = "production" }, false},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production short secret", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "short"
		}, true},
		{"production weak db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"production sqlite", func(c *Config) {
			c.Env = "production"
			c.DBDriver = "sqlite"
		}, true},
		{"seeding in development", func(c *Config) { c.SeedOnStart = true }, false},
		{"seeding in production", func(c *Config) {
			c.Env = "production"
			c.SeedOnStart = true
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	c := validConfig()
	assert.Equal(t, 7*24*time.Hour, c.JWTTTL())
	assert.Equal(t, time.Duration(0), c.FeedCacheTTL())

	c.JWTTTLHours = 2
	c.FeedCacheTTLSeconds = 15
	assert.Equal(t, 2*time.Hour, c.JWTTTL())
	assert.Equal(t, 15*time.Second, c.FeedCacheTTL())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("FEED_CACHE_TTL_SECONDS", "0")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, time.Duration(0), c.FeedCacheTTL())
	assert.False(t, c.IsProduction())
}

func TestConfig_ValidateReportsEveryProductionProblem(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.JWTSecret = defaultJWTSecret
	c.DBDriver = "sqlite"
	c.SeedOnStart = true

	err := c.Validate()
	require.Error(t, err)
	for _, key := range []string{"JWT_SECRET", "DB_DRIVER", "SEED_ON_START"} {
		assert.Contains(t, err.Error(), key)
	}
}
