// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "github-analyzer/internal/errors"
)

// Client is a wrapper around the go-github client that adds GraphQL queries,
// budget tracking and bounded retries.
type Client struct {
	gh      *github.Client
	limiter *RateLimiter
	cfg     Config
	logger  *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The configured token is used to create an authenticated http.Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	gh := github.NewClient(tc)
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse GitHub base URL: %w", err)
	}
	gh.BaseURL = u
	gh.UserAgent = "github-analyzer"

	return &Client{
		gh:      gh,
		limiter: NewRateLimiter(cfg, logger),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// RateLimit returns the last known budget for res.
func (c *Client) RateLimit(res Resource) RateLimitSnapshot {
	return c.limiter.Snapshot(res)
}

// call runs fn under the rate limiter and retries transient failures with
// exponential backoff. Terminal failures are returned after the first attempt.
// Each attempt gets its own Timeout; only the caller's ctx ends the retries.
func (c *Client) call(ctx context.Context, res Resource, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx, res); err != nil {
			return backoff.Permanent(err)
		}

		err := c.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		err = classifyError(err)
		c.recordThrottle(res, err)
		if !apperrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Warn("GitHub request failed, retrying",
			"operation", op, "attempt", attempt, "max_attempts", c.cfg.MaxAttempts,
			"delay", delay.String(), "error", err)
	}

	err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && apperrors.IsTransient(err) {
		return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempt, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx)
}

// recordThrottle feeds throttling signals back into the limiter so the next attempt waits.
func (c *Client) recordThrottle(res Resource, err error) {
	var rl *apperrors.RateLimitError
	if errors.As(err, &rl) {
		c.limiter.Exhaust(res, rl.ResetAt)
		return
	}
	var srl *apperrors.SecondaryRateLimitError
	if errors.As(err, &srl) {
		c.limiter.Pause(res, srl.RetryAfter)
	}
}

// classifyError converts go-github errors to our error types.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &apperrors.RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &apperrors.SecondaryRateLimitError{RetryAfter: abuseErr.GetRetryAfter()}
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		switch {
		case status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, ghErr.Message)
		case status == http.StatusNotFound:
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, ghErr.Message)
		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidQuery, ghErr.Message)
		case status == http.StatusTooManyRequests:
			return &apperrors.SecondaryRateLimitError{RetryAfter: retryAfter(ghErr.Response)}
		}
		return &apperrors.APIError{StatusCode: status, Message: ghErr.Message}
	}

	return err
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
