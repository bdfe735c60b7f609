package github

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/time/rate"
)

// Resource identifies one of GitHub's independently metered budgets.
type Resource string

const (
	ResourceGraphQL Resource = "graphql"
	ResourceCore    Resource = "core"
)

// RateLimitSnapshot is a copy of the limiter state for one resource.
type RateLimitSnapshot struct {
	Resource  Resource
	Known     bool
	Limit     int
	Remaining int
	Cost      int
	ResetAt   time.Time
}

type budget struct {
	known       bool
	limit       int
	remaining   int
	cost        int
	resetAt     time.Time
	pausedUntil time.Time
}

// RateLimiter tracks GitHub's remaining budget per resource and blocks callers
// when the budget falls below the safety margin. All reads and writes of the
// budget go through mu.
type RateLimiter struct {
	mu      sync.Mutex
	budgets map[Resource]*budget
	bucket  *rate.Limiter
	margin  int
	minWait time.Duration
	maxWait time.Duration
	logger  *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter from the client configuration.
func NewRateLimiter(cfg Config, logger *slog.Logger) *RateLimiter {
	r := &RateLimiter{
		budgets: make(map[Resource]*budget),
		margin:  cfg.SafetyMargin,
		minWait: cfg.MinWait,
		maxWait: cfg.MaxWait,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
	if cfg.RequestInterval > 0 {
		r.bucket = rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *RateLimiter) budgetLocked(res Resource) *budget {
	b, ok := r.budgets[res]
	if !ok {
		b = &budget{cost: 1}
		r.budgets[res] = b
	}
	return b
}

// Wait blocks until a call against res may be issued and reserves its cost.
func (r *RateLimiter) Wait(ctx context.Context, res Resource) error {
	if r.bucket != nil {
		if err := r.bucket.Wait(ctx); err != nil {
			return err
		}
	}

	for {
		r.mu.Lock()
		b := r.budgetLocked(res)
		wait, reason := r.reserveLocked(b)
		remaining, resetAt := b.remaining, b.resetAt
		r.mu.Unlock()

		if wait <= 0 {
			return nil
		}

		r.logger.Warn("Rate limit budget low, waiting",
			"resource", res, "reason", reason, "remaining", remaining,
			"reset_at", resetAt, "wait", wait.String())
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}

		r.mu.Lock()
		r.afterWaitLocked(b)
		r.mu.Unlock()
	}
}

// reserveLocked either reserves one call's cost and returns zero, or returns how long to wait.
func (r *RateLimiter) reserveLocked(b *budget) (time.Duration, string) {
	now := r.now()

	if now.Before(b.pausedUntil) {
		return b.pausedUntil.Sub(now), "paused"
	}
	if !b.known {
		// No snapshot yet; the first response establishes one.
		return 0, ""
	}
	if !now.Before(b.resetAt) {
		b.remaining = b.limit
	}
	if b.remaining < r.margin || b.remaining <= 0 {
		wait := b.resetAt.Sub(now)
		if wait <= 0 {
			wait = r.minWait
		}
		if wait > r.maxWait {
			wait = r.maxWait
		}
		return wait, "budget"
	}

	b.remaining -= b.cost
	return 0, ""
}

// afterWaitLocked drops the snapshot once its window has reset, so the next
// response becomes authoritative. A wait cut short by MaxWait keeps the
// exhausted snapshot and the caller waits again.
func (r *RateLimiter) afterWaitLocked(b *budget) {
	now := r.now()
	if !now.Before(b.pausedUntil) {
		b.pausedUntil = time.Time{}
	}
	if !now.Before(b.resetAt) {
		b.known = false
	}
}

// Update records the budget reported by GitHub for res.
func (r *RateLimiter) Update(res Resource, limit, remaining, cost int, resetAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.budgetLocked(res)
	b.known = true
	b.limit = limit
	b.remaining = remaining
	b.resetAt = resetAt
	if cost > 0 {
		b.cost = cost
	}
}

// UpdateFromResponse records the X-RateLimit-* headers parsed by go-github.
func (r *RateLimiter) UpdateFromResponse(res Resource, resp *github.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	r.Update(res, resp.Rate.Limit, resp.Rate.Remaining, 0, resp.Rate.Reset.Time)
}

// Exhaust marks res as having no budget left until resetAt.
func (r *RateLimiter) Exhaust(res Resource, resetAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.budgetLocked(res)
	now := r.now()
	if !resetAt.After(now) {
		resetAt = now.Add(r.minWait)
	}
	if b.limit == 0 {
		b.limit = r.margin + 1
	}
	b.known = true
	b.remaining = 0
	b.resetAt = resetAt
}

// Pause blocks every call against res for d, as requested by a secondary rate limit.
func (r *RateLimiter) Pause(res Resource, d time.Duration) {
	if d <= 0 {
		d = r.minWait
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.budgetLocked(res)
	until := r.now().Add(d)
	if until.After(b.pausedUntil) {
		b.pausedUntil = until
	}
}

// Snapshot returns the current state for res.
func (r *RateLimiter) Snapshot(res Resource) RateLimitSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.budgetLocked(res)
	return RateLimitSnapshot{
		Resource:  res,
		Known:     b.known,
		Limit:     b.limit,
		Remaining: b.remaining,
		Cost:      b.cost,
		ResetAt:   b.resetAt,
	}
}
