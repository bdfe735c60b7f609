// internal/errors/errors.go
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrUnauthorized is returned when GitHub rejects the configured credential.
	ErrUnauthorized = errors.New("github: bad or missing credentials")

	// ErrNotFound is returned when a repository or stored record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuery is returned when GitHub refuses a query as malformed.
	ErrInvalidQuery = errors.New("github: invalid query")

	// ErrStoreUnavailable is returned when the configured store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrInvalidRepoFormat is returned when a repository string is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrInvalidTopic is returned when a topic name does not follow GitHub's topic rules.
type ErrInvalidTopic struct {
	Topic  string
	Reason string
}

func (e *ErrInvalidTopic) Error() string {
	return fmt.Sprintf("invalid topic %q: %s", e.Topic, e.Reason)
}

// RateLimitError is returned when the primary rate limit is exhausted.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// SecondaryRateLimitError is returned when GitHub asks the caller to slow down.
type SecondaryRateLimitError struct {
	RetryAfter time.Duration
}

func (e *SecondaryRateLimitError) Error() string {
	return fmt.Sprintf("github: secondary rate limit, retry after %s", e.RetryAfter)
}

// APIError represents an error response from GitHub that has no more specific type.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("github: API error %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("github: API error %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	// A per-attempt deadline or a client timeout is a slow server, not a cancelled caller.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidQuery) {
		return false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var srl *SecondaryRateLimitError
	if errors.As(err, &srl) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.Type == "RATE_LIMITED"
	}
	return errors.As(err, &netErr)
}

// IsTerminalForRun reports whether err must stop the whole run rather than one
// unit of work. Cancellation is handled by the caller's context.
func IsTerminalForRun(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
