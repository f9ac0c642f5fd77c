package driving

import "github.com/custodia-labs/memquery/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetRankingWeights updates the hybrid ranking weights.
	SetRankingWeights(weights domain.RankingWeights) error

	// SetSourceEnabled switches a configured source on or off.
	SetSourceEnabled(name string, enabled bool) error

	// SetCacheBackend selects the result cache backend.
	SetCacheBackend(kind domain.CacheBackendKind) error

	// Validate checks the current settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
