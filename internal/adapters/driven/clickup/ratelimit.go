package clickup

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// HeaderRateLimit is the rate limit header.
	HeaderRateLimit = "X-RateLimit-Limit"

	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"

	// DefaultBackoff is used when a 429 carries no timing headers.
	DefaultBackoff = 5 * time.Second

	// maxBurst caps how many requests may go out back to back.
	maxBurst = 10
)

// RateLimiter combines a proactive token bucket sized from the configured
// requests per minute with reactive backoff driven by ClickUp's headers.
// A single RateLimiter is shared by every call made through one Client.
type RateLimiter struct {
	mu        sync.Mutex
	bucket    *rate.Limiter
	remaining int
	limit     int
	resetTime time.Time
	retryAt   time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter allowing requestsPerMinute requests.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	burst := requestsPerMinute
	if burst > maxBurst {
		burst = maxBurst
	}
	return &RateLimiter{
		bucket:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst),
		remaining: -1,
		limit:     requestsPerMinute,
		now:       time.Now,
	}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	until := r.retryAt
	if r.remaining == 0 && r.resetTime.After(until) {
		until = r.resetTime
	}
	now := r.now()
	r.mu.Unlock()

	if now.Before(until) {
		timer := time.NewTimer(until.Sub(now))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.bucket.Wait(ctx)
}

// UpdateFromResponse updates rate limit state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := resp.Header.Get(HeaderRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
		}
	}
	if limit := resp.Header.Get(HeaderRateLimit); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			r.limit = val
		}
	}
	if reset := resp.Header.Get(HeaderRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(val, 0)
		}
	}
}

// RecordRateLimited sets a backoff after a 429 and returns how long it lasts.
// Retry-After wins over X-RateLimit-Reset; with neither, DefaultBackoff applies.
func (r *RateLimiter) RecordRateLimited(resp *http.Response) time.Duration {
	r.UpdateFromResponse(resp)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	wait := DefaultBackoff
	switch {
	case resp != nil && resp.Header.Get(HeaderRetryAfter) != "":
		if seconds, err := strconv.Atoi(resp.Header.Get(HeaderRetryAfter)); err == nil && seconds >= 0 {
			wait = time.Duration(seconds) * time.Second
		}
	case r.resetTime.After(now):
		wait = r.resetTime.Sub(now)
	}

	r.retryAt = now.Add(wait)
	return wait
}

// Error builds a RateLimitError from the current state.
func (r *RateLimiter) Error() *RateLimitError {
	r.mu.Lock()
	defer r.mu.Unlock()
	reset := r.retryAt
	if r.resetTime.After(reset) {
		reset = r.resetTime
	}
	return &RateLimitError{ResetAt: reset, Remaining: r.remaining, Limit: r.limit}
}

// Remaining returns the last remaining count reported by ClickUp, or -1 if unknown.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}
