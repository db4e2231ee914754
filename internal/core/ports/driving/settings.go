package driving

import "github.com/custodia-labs/boltindex/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current settings, filling unset keys with defaults.
	Get() (*domain.Settings, error)

	// Set stores a single dotted configuration key.
	Set(key string, value any) error

	// SetOracleProvider configures the oracle provider.
	SetOracleProvider(provider domain.AIProvider, model, apiKey string) error

	// SetEmbedderProvider configures the text embedder provider.
	SetEmbedderProvider(provider domain.AIProvider, model, apiKey string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}
