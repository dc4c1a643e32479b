package driving

import "github.com/custodia-labs/cellstore/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current settings, falling back to defaults.
	Get() (*domain.Settings, error)

	// Save validates and persists settings.
	Save(settings *domain.Settings) error

	// Set updates one setting by key from its string form.
	Set(key, value string) error

	// Keys lists the recognised setting keys.
	Keys() []string
}
