package driven

// ConfigStore is a flat key-value view of the configuration. Keys are
// dot paths such as "cache.ttl" or "sources.cognee.url"; typed getters
// return the zero value for missing or unconvertible entries.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool

	// GetStringSlice also accepts a comma-separated string.
	GetStringSlice(key string) []string

	// Keys lists the stored keys under prefix, sorted.
	Keys(prefix string) []string

	// Set updates the in-memory value; Save writes it out.
	Set(key string, value any) error
	Save() error
	Load() error

	// Path is the backing file, or "" when there is none.
	Path() string
}
