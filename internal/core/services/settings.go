package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driven"
	"github.com/custodia-labs/invoicesync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyClickUpToken      = "clickup.token"
	KeyClickUpBaseURL    = "clickup.base_url"
	KeyClickUpTimeout    = "clickup.timeout_seconds"
	KeyClickUpRate       = "clickup.requests_per_minute"
	KeyUpdateDescription = "reconcile.update_description"
	KeyAutoCreateMissing = "reconcile.auto_create_missing"
	KeyExpandLineItems   = "reconcile.expand_line_items"
	KeyStorageDataDir    = "storage.data_dir"

	// Environment variables that override the configured token.
	envClickUpToken         = "CLICKUP_API_TOKEN"
	envClickUpAuthorization = "CLICKUP_AUTHORIZATION"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings.
// A token in the environment takes precedence over the configured one.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		ClickUp: domain.ClickUpSettings{
			Token:             s.token(),
			BaseURL:           s.getString(KeyClickUpBaseURL, defaults.ClickUp.BaseURL),
			Timeout:           time.Duration(s.getInt(KeyClickUpTimeout, int(defaults.ClickUp.Timeout/time.Second))) * time.Second,
			RequestsPerMinute: s.getInt(KeyClickUpRate, defaults.ClickUp.RequestsPerMinute),
		},
		Reconcile: domain.ReconcileSettings{
			UpdateDescription: s.getBool(KeyUpdateDescription, defaults.Reconcile.UpdateDescription),
			AutoCreateMissing: s.getBool(KeyAutoCreateMissing, defaults.Reconcile.AutoCreateMissing),
			ExpandLineItems:   s.getBool(KeyExpandLineItems, defaults.Reconcile.ExpandLineItems),
		},
		Storage: domain.StorageSettings{
			DataDir: s.configStore.GetString(KeyStorageDataDir),
		},
	}

	return settings, nil
}

// Save persists application settings. The token is not written; use SetToken.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := s.configStore.Set(KeyClickUpBaseURL, settings.ClickUp.BaseURL); err != nil {
		return fmt.Errorf("save clickup base_url: %w", err)
	}
	if err := s.configStore.Set(KeyClickUpTimeout, int(settings.ClickUp.Timeout/time.Second)); err != nil {
		return fmt.Errorf("save clickup timeout: %w", err)
	}
	if err := s.configStore.Set(KeyClickUpRate, settings.ClickUp.RequestsPerMinute); err != nil {
		return fmt.Errorf("save clickup rate: %w", err)
	}

	if err := s.configStore.Set(KeyUpdateDescription, settings.Reconcile.UpdateDescription); err != nil {
		return fmt.Errorf("save update_description: %w", err)
	}
	if err := s.configStore.Set(KeyAutoCreateMissing, settings.Reconcile.AutoCreateMissing); err != nil {
		return fmt.Errorf("save auto_create_missing: %w", err)
	}
	if err := s.configStore.Set(KeyExpandLineItems, settings.Reconcile.ExpandLineItems); err != nil {
		return fmt.Errorf("save expand_line_items: %w", err)
	}

	if err := s.configStore.Set(KeyStorageDataDir, settings.Storage.DataDir); err != nil {
		return fmt.Errorf("save data_dir: %w", err)
	}

	return nil
}

// SetToken stores the ClickUp API token.
func (s *SettingsService) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is empty", domain.ErrInvalidInput)
	}
	if err := s.configStore.Set(KeyClickUpToken, token); err != nil {
		return fmt.Errorf("save clickup token: %w", err)
	}
	return nil
}

// settingKinds lists the keys accepted by Set with their value type.
var settingKinds = map[string]string{
	KeyClickUpToken:      "string",
	KeyClickUpBaseURL:    "string",
	KeyClickUpTimeout:    "int",
	KeyClickUpRate:       "int",
	KeyUpdateDescription: "bool",
	KeyAutoCreateMissing: "bool",
	KeyExpandLineItems:   "bool",
	KeyStorageDataDir:    "string",
}

// Keys returns the configuration keys accepted by Set, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set updates a single setting, converting the value to the key's type.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var typed any
	switch kind {
	case "int":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidInput, key)
		}
		typed = n
	case "bool":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		typed = b
	default:
		typed = strings.TrimSpace(value)
	}

	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Validate checks if current settings are usable for talking to ClickUp.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.ClickUp.IsConfigured() {
		return fmt.Errorf("%w: set %s or run 'invoicesync config set-token'", domain.ErrAuthRequired, envClickUpToken)
	}
	return settings.ClickUp.Validate()
}

func (s *SettingsService) token() string {
	for _, env := range []string{envClickUpToken, envClickUpAuthorization} {
		if v, ok := s.lookupEnv(env); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return s.configStore.GetString(KeyClickUpToken)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}
