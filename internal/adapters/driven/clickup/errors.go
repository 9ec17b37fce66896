package clickup

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// RateLimitError represents a rate limit that outlasted MaxRetries.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("clickup: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap lets errors.Is match domain.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// APIError represents a ClickUp API error response.
type APIError struct {
	StatusCode int
	// Code is ClickUp's ECODE, e.g. "OAUTH_025".
	Code    string
	Message string
	URL     string

	kind error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("clickup: API error %d (%s): %s (URL: %s)", e.StatusCode, e.Code, e.Message, e.URL)
	}
	return fmt.Sprintf("clickup: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap returns the domain sentinel the status maps to.
func (e *APIError) Unwrap() error {
	return e.kind
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// statusKind maps an HTTP status onto a domain sentinel. Callers refine
// 400 responses for the operation at hand.
func statusKind(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrAuthInvalid
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status >= 500:
		return domain.ErrRemoteUnavailable
	default:
		return domain.ErrInvalidInput
	}
}

// unavailable wraps transport failures.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrRemoteUnavailable, err)
}
