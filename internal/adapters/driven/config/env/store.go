// Package env overlays environment variables on another configuration
// store. A key such as "sources.cognee.api_key" is read from
// MEMQUERY_SOURCES_COGNEE_API_KEY before falling back to the base store.
package env

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/custodia-labs/memquery/internal/adapters/driven/config"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Prefix is prepended to every environment variable name.
const Prefix = "MEMQUERY"

// Ensure Store implements the interface.
var _ driven.ConfigStore = (*Store)(nil)

// Store reads environment overrides first and delegates everything else,
// including writes, to the base store.
type Store struct {
	base driven.ConfigStore
	v    *viper.Viper
}

// New wraps base with environment overrides.
func New(base driven.ConfigStore) *Store {
	v := viper.New()
	v.SetEnvPrefix(Prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Store{base: base, v: v}
}

// EnvVar returns the environment variable consulted for key.
func EnvVar(key string) string {
	return Prefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Get returns the environment value for key when set, else the base value.
func (s *Store) Get(key string) (any, bool) {
	if val := s.v.Get(key); val != nil {
		return val, true
	}
	return s.base.Get(key)
}

// GetString retrieves a string configuration value.
func (s *Store) GetString(key string) string {
	val, _ := s.Get(key)
	return config.String(val)
}

// GetInt retrieves an integer configuration value.
func (s *Store) GetInt(key string) int {
	val, _ := s.Get(key)
	return config.Int(val)
}

// GetBool retrieves a boolean configuration value.
func (s *Store) GetBool(key string) bool {
	val, _ := s.Get(key)
	return config.Bool(val)
}

// GetStringSlice retrieves a string slice. Environment values are
// comma-separated.
func (s *Store) GetStringSlice(key string) []string {
	val, _ := s.Get(key)
	return config.StringSlice(val)
}

// Keys lists the base store's keys. Environment-only overrides are not
// enumerated.
func (s *Store) Keys(prefix string) []string {
	return s.base.Keys(prefix)
}

// Set writes to the base store. An environment override still wins on read.
func (s *Store) Set(key string, value any) error {
	return s.base.Set(key, value)
}

// Save persists the base store.
func (s *Store) Save() error {
	return s.base.Save()
}

// Load reloads the base store. Environment values are read on every Get.
func (s *Store) Load() error {
	return s.base.Load()
}

// Path returns the base store path.
func (s *Store) Path() string {
	return s.base.Path()
}

// Base returns the wrapped store.
func (s *Store) Base() driven.ConfigStore {
	return s.base
}
