// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values of STORE_DRIVER.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	GithubToken  string `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL string `mapstructure:"GITHUB_API_URL"`

	StoreDriver      string `mapstructure:"STORE_DRIVER"`
	MongoURI         string `mapstructure:"MONGODB_URI"`
	MongoDatabase    string `mapstructure:"MONGODB_DATABASE"`
	DBURL            string `mapstructure:"DB_URL"`
	HTTPAddr         string `mapstructure:"HTTP_ADDR"`
	MaxReposPerTopic int    `mapstructure:"MAX_REPOSITORIES_PER_TOPIC"`
	MaxContributors  int    `mapstructure:"MAX_CONTRIBUTORS_PER_REPO"`
	Concurrency      int    `mapstructure:"CONCURRENCY"`

	RateLimitSafetyMargin int           `mapstructure:"RATE_LIMIT_SAFETY_MARGIN"`
	RateLimitMinWait      time.Duration `mapstructure:"RATE_LIMIT_MIN_WAIT"`
	RateLimitMaxWait      time.Duration `mapstructure:"RATE_LIMIT_MAX_WAIT"`
	RequestInterval       time.Duration `mapstructure:"REQUEST_INTERVAL"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxAttempts           int           `mapstructure:"MAX_ATTEMPTS"`
	InitialBackoff        time.Duration `mapstructure:"INITIAL_BACKOFF"`
	MaxBackoff            time.Duration `mapstructure:"MAX_BACKOFF"`
}

var defaults = map[string]any{
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"GITHUB_API_URL":             "https://api.github.com/",
	"STORE_DRIVER":               StoreMongo,
	"MONGODB_URI":                "mongodb://localhost:27017/",
	"MONGODB_DATABASE":           "github_contributors",
	"HTTP_ADDR":                  ":8080",
	"MAX_REPOSITORIES_PER_TOPIC": 100,
	"MAX_CONTRIBUTORS_PER_REPO":  100,
	"CONCURRENCY":                1,
	"RATE_LIMIT_SAFETY_MARGIN":   10,
	"RATE_LIMIT_MIN_WAIT":        "1s",
	"RATE_LIMIT_MAX_WAIT":        "1h",
	"REQUEST_INTERVAL":           "1s",
	"REQUEST_TIMEOUT":            "30s",
	"MAX_ATTEMPTS":               4,
	"INITIAL_BACKOFF":            "1s",
	"MAX_BACKOFF":                "30s",
}

// LoadConfig reads configuration from a .env file in dir (if present) and environment variables.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("GITHUB_TOKEN")
	_ = v.BindEnv("DB_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	if c.MaxReposPerTopic <= 0 {
		return errors.New("MAX_REPOSITORIES_PER_TOPIC must be greater than 0")
	}
	if c.MaxContributors <= 0 {
		return errors.New("MAX_CONTRIBUTORS_PER_REPO must be greater than 0")
	}
	if c.Concurrency <= 0 {
		return errors.New("CONCURRENCY must be greater than 0")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("MAX_ATTEMPTS must be greater than 0")
	}
	if c.RateLimitSafetyMargin < 0 {
		return errors.New("RATE_LIMIT_SAFETY_MARGIN must not be negative")
	}

	switch c.StoreDriver {
	case StoreMongo:
		u, err := url.Parse(c.MongoURI)
		if err != nil {
			return fmt.Errorf("MONGODB_URI is invalid: %w", err)
		}
		if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
			return errors.New("MONGODB_URI must start with 'mongodb://' or 'mongodb+srv://'")
		}
		if c.MongoDatabase == "" {
			return errors.New("MONGODB_DATABASE is a required configuration field")
		}
	case StorePostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field when STORE_DRIVER=postgres")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of %q, %q or %q", StoreMongo, StorePostgres, StoreMemory)
	}
	return nil
}

// RequireToken fails when no GitHub token is configured. Only commands that call GitHub need one.
func (c *Config) RequireToken() error {
	if c.GithubToken == "" {
		return errors.New("GITHUB_TOKEN is a required configuration field")
	}
	return nil
}
