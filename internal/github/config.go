package github

import "time"

const (
	// DefaultBaseURL is the public GitHub API root. GraphQL lives at DefaultBaseURL + "graphql".
	DefaultBaseURL = "https://api.github.com/"

	// MaxPageSize is the largest page GitHub serves for search and contributors.
	MaxPageSize = 100
)

// Config controls how the client talks to GitHub.
type Config struct {
	BaseURL string
	Token   string

	// SafetyMargin is the remaining-budget floor below which calls wait for the reset.
	SafetyMargin int
	// MinWait is used when GitHub signals exhaustion without a usable reset time.
	MinWait time.Duration
	// MaxWait caps a single rate-limit wait.
	MaxWait time.Duration
	// RequestInterval spaces consecutive requests. Zero disables spacing.
	RequestInterval time.Duration

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		SafetyMargin:    10,
		MinWait:         time.Second,
		MaxWait:         time.Hour,
		RequestInterval: time.Second,
		MaxAttempts:     4,
		InitialBackoff:  time.Second,
		MaxBackoff:      30 * time.Second,
		Timeout:         30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.MinWait <= 0 {
		c.MinWait = d.MinWait
	}
	if c.MaxWait <= 0 {
		c.MaxWait = d.MaxWait
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
