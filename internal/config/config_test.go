package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, "https://api.github.com/", cfg.GithubAPIURL)
	assert.Equal(t, 100, cfg.MaxReposPerTopic)
	assert.Equal(t, 10, cfg.RateLimitSafetyMargin)
	assert.Equal(t, time.Hour, cfg.RateLimitMaxWait)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 1, cfg.Concurrency)
}

func TestLoadConfig_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := "GITHUB_TOKEN=from-file\nMAX_CONTRIBUTORS_PER_REPO=25\nREQUEST_INTERVAL=250ms\nSTORE_DRIVER=postgres\nDB_URL=postgres://u:p@localhost:5432/db\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0o600))
	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("CONCURRENCY", "3")

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GithubToken, "environment overrides .env")
	assert.Equal(t, 25, cfg.MaxContributors)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestInterval)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.NoError(t, cfg.RequireToken())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:      StoreMongo,
			MongoURI:         "mongodb://localhost:27017/",
			MongoDatabase:    "db",
			MaxReposPerTopic: 10,
			MaxContributors:  10,
			Concurrency:      1,
			MaxAttempts:      3,
		}
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"srv uri", func(c *Config) { c.MongoURI = "mongodb+srv://cluster.example.net" }, ""},
		{"bad uri scheme", func(c *Config) { c.MongoURI = "http://localhost" }, "MONGODB_URI"},
		{"postgres without url", func(c *Config) { c.StoreDriver = StorePostgres }, "DB_URL"},
		{"memory", func(c *Config) { c.StoreDriver = StoreMemory; c.MongoURI = "" }, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "redis" }, "STORE_DRIVER"},
		{"zero repo limit", func(c *Config) { c.MaxReposPerTopic = 0 }, "MAX_REPOSITORIES_PER_TOPIC"},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, "MAX_ATTEMPTS"},
		{"negative margin", func(c *Config) { c.RateLimitSafetyMargin = -1 }, "RATE_LIMIT_SAFETY_MARGIN"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRequireToken(t *testing.T) {
	assert.Error(t, (&Config{}).RequireToken())
}
