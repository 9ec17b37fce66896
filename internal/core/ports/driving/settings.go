package driving

import "github.com/custodia-labs/invoicesync/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, with environment overrides applied.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetToken stores the ClickUp API token.
	SetToken(token string) error

	// Set updates a single setting by its configuration key.
	Set(key, value string) error

	// Keys returns the configuration keys accepted by Set.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// Validate checks if current settings are usable.
	Validate() error
}
