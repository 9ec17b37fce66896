package domain

import (
	"fmt"
	"time"
)

// Default ClickUp settings.
const (
	DefaultClickUpBaseURL       = "https://api.clickup.com/api/v2"
	DefaultClickUpTimeout       = 30 * time.Second
	DefaultRequestsPerMinute    = 100
	DefaultBatchConcurrency     = 4
	DefaultWatchDebounce        = 750 * time.Millisecond
	minRequestsPerMinute        = 1
	maxClickUpTimeoutSeconds    = 600
	unsetTokenDescription       = "(not set)"
	maskedTokenVisibleCharCount = 4
)

// AppSettings holds all application settings.
type AppSettings struct {
	ClickUp   ClickUpSettings
	Reconcile ReconcileSettings
	Storage   StorageSettings
}

// ClickUpSettings configures the task-management API client.
type ClickUpSettings struct {
	// Token is a personal API token (pk_...) or an OAuth access token.
	Token string

	// BaseURL is the API root (default: https://api.clickup.com/api/v2).
	BaseURL string

	// Timeout bounds every remote call.
	Timeout time.Duration

	// RequestsPerMinute throttles outgoing requests.
	RequestsPerMinute int
}

// IsConfigured returns true if a token is available.
func (s ClickUpSettings) IsConfigured() bool {
	return s.Token != ""
}

// MaskedToken returns the token with all but its edges hidden.
func (s ClickUpSettings) MaskedToken() string {
	if s.Token == "" {
		return unsetTokenDescription
	}
	n := maskedTokenVisibleCharCount
	if len(s.Token) <= 2*n {
		return "****"
	}
	return s.Token[:n] + "..." + s.Token[len(s.Token)-n:]
}

// Validate checks the settings are usable.
func (s ClickUpSettings) Validate() error {
	if s.RequestsPerMinute < minRequestsPerMinute {
		return fmt.Errorf("%w: requests per minute must be at least %d", ErrInvalidInput, minRequestsPerMinute)
	}
	if s.Timeout <= 0 || s.Timeout > maxClickUpTimeoutSeconds*time.Second {
		return fmt.Errorf("%w: timeout must be between 1s and %ds", ErrInvalidInput, maxClickUpTimeoutSeconds)
	}
	return nil
}

// ReconcileSettings holds defaults for reconciliation calls.
type ReconcileSettings struct {
	// UpdateDescription appends the line-item table by default.
	UpdateDescription bool

	// AutoCreateMissing creates fields for unmatched keys by default.
	AutoCreateMissing bool

	// ExpandLineItems creates subtasks for line items by default.
	ExpandLineItems bool
}

// StorageSettings configures local persistence.
type StorageSettings struct {
	// DataDir holds the mapping profile database. Empty means ~/.invoicesync/data.
	DataDir string
}

// DefaultAppSettings returns the default application settings.
// The token is left empty; it must be configured or provided via environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		ClickUp: ClickUpSettings{
			BaseURL:           DefaultClickUpBaseURL,
			Timeout:           DefaultClickUpTimeout,
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		Reconcile: ReconcileSettings{
			UpdateDescription: true,
			AutoCreateMissing: true,
			ExpandLineItems:   false,
		},
	}
}
