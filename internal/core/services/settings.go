package services

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyServiceName        = "service.name"
	keyServiceHost        = "service.host"
	keyServicePort        = "service.port"
	keyMaxConcurrent      = "service.max_concurrent_queries"
	keyQueryTimeout       = "service.query_timeout"
	keyLogLevel           = "log.level"
	keyLogJSON            = "log.json"
	keyCacheBackend       = "cache.backend"
	keyCacheTTL           = "cache.ttl"
	keyCacheMaxSize       = "cache.max_size"
	keyCacheRedisURL      = "cache.redis_url"
	keyCacheKeyPrefix     = "cache.key_prefix"
	keyRankRelevance      = "ranking.relevance"
	keyRankRecency        = "ranking.recency"
	keyRankTrust          = "ranking.source_trust"
	keyRankPreference     = "ranking.user_preference"
	keyRetryInitial       = "retry.initial_interval"
	keyRetryMax           = "retry.max_interval"
	keyRetryMultiplier    = "retry.multiplier"
	keySourcesOrder       = "sources.order"
	keyTelemetryEnabled   = "telemetry.enabled"
	keyTelemetryEndpoint  = "telemetry.endpoint"
	keyTelemetryInsecure  = "telemetry.insecure"
	keyTelemetrySample    = "telemetry.sample_ratio"
	keySchedulerEnabled   = "scheduler.enabled"
	keyStorageBackend     = "storage.backend"
	keyStoragePath        = "storage.path"
	sourceKeyPrefix       = "sources."
	sourceOptionKeyPrefix = "options."
)

// sourceOptionKeys are the kind-specific options read from configuration.
var sourceOptionKeys = []string{
	"user_id", "index", "collection", "username", "password", "database", "vector_size",
	"embedder", "embedding_model", "embedding_url", "embedding_api_key",
}

// schedulerTaskKeys maps task IDs to config keys (underscore version for TOML).
var schedulerTaskKeys = map[string]string{
	domain.TaskIDSourceHealth: "source_health",
	domain.TaskIDCacheSweep:   "cache_sweep",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Service: domain.ServiceSettings{
			Name:                 s.getString(keyServiceName, defaults.Service.Name),
			Host:                 s.getString(keyServiceHost, defaults.Service.Host),
			Port:                 s.getInt(keyServicePort, defaults.Service.Port),
			MaxConcurrentQueries: s.getInt(keyMaxConcurrent, defaults.Service.MaxConcurrentQueries),
			QueryTimeout:         s.getDuration(keyQueryTimeout, defaults.Service.QueryTimeout),
			LogLevel:             s.getString(keyLogLevel, defaults.Service.LogLevel),
			LogJSON:              s.getBool(keyLogJSON, defaults.Service.LogJSON),
		},
		Cache: domain.CacheSettings{
			Backend:   s.getCacheBackend(defaults.Cache.Backend),
			TTL:       s.getDuration(keyCacheTTL, defaults.Cache.TTL),
			MaxSize:   s.getInt(keyCacheMaxSize, defaults.Cache.MaxSize),
			RedisURL:  s.getString(keyCacheRedisURL, defaults.Cache.RedisURL),
			KeyPrefix: s.getString(keyCacheKeyPrefix, defaults.Cache.KeyPrefix),
		},
		Ranking: domain.RankingWeights{
			Relevance:      s.getFloat(keyRankRelevance, defaults.Ranking.Relevance),
			Recency:        s.getFloat(keyRankRecency, defaults.Ranking.Recency),
			SourceTrust:    s.getFloat(keyRankTrust, defaults.Ranking.SourceTrust),
			UserPreference: s.getFloat(keyRankPreference, defaults.Ranking.UserPreference),
		},
		Retry: domain.RetrySettings{
			InitialInterval: s.getDuration(keyRetryInitial, defaults.Retry.InitialInterval),
			MaxInterval:     s.getDuration(keyRetryMax, defaults.Retry.MaxInterval),
			Multiplier:      s.getFloat(keyRetryMultiplier, defaults.Retry.Multiplier),
		},
		Sources: s.getSources(defaults.Sources),
		Telemetry: domain.TelemetrySettings{
			Enabled:     s.getBool(keyTelemetryEnabled, defaults.Telemetry.Enabled),
			Endpoint:    s.getString(keyTelemetryEndpoint, defaults.Telemetry.Endpoint),
			Insecure:    s.getBool(keyTelemetryInsecure, defaults.Telemetry.Insecure),
			SampleRatio: s.getFloat(keyTelemetrySample, defaults.Telemetry.SampleRatio),
		},
		Scheduler: s.GetSchedulerConfig(),
		Storage: domain.StorageSettings{
			Backend: s.getStorageBackend(defaults.Storage.Backend),
			Path:    s.getString(keyStoragePath, defaults.Storage.Path),
		},
	}

	return settings, nil
}

// Save persists application settings. API keys are only written when set.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyServiceName, settings.Service.Name},
		{keyServiceHost, settings.Service.Host},
		{keyServicePort, settings.Service.Port},
		{keyMaxConcurrent, settings.Service.MaxConcurrentQueries},
		{keyQueryTimeout, settings.Service.QueryTimeout.String()},
		{keyLogLevel, settings.Service.LogLevel},
		{keyLogJSON, settings.Service.LogJSON},
		{keyCacheBackend, settings.Cache.Backend.String()},
		{keyCacheTTL, settings.Cache.TTL.String()},
		{keyCacheMaxSize, settings.Cache.MaxSize},
		{keyCacheRedisURL, settings.Cache.RedisURL},
		{keyCacheKeyPrefix, settings.Cache.KeyPrefix},
		{keyRankRelevance, settings.Ranking.Relevance},
		{keyRankRecency, settings.Ranking.Recency},
		{keyRankTrust, settings.Ranking.SourceTrust},
		{keyRankPreference, settings.Ranking.UserPreference},
		{keyRetryInitial, settings.Retry.InitialInterval.String()},
		{keyRetryMax, settings.Retry.MaxInterval.String()},
		{keyRetryMultiplier, settings.Retry.Multiplier},
		{keyTelemetryEnabled, settings.Telemetry.Enabled},
		{keyTelemetryEndpoint, settings.Telemetry.Endpoint},
		{keyTelemetryInsecure, settings.Telemetry.Insecure},
		{keyTelemetrySample, settings.Telemetry.SampleRatio},
		{keySchedulerEnabled, settings.Scheduler.Enabled},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStoragePath, settings.Storage.Path},
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	order := make([]string, 0, len(settings.Sources))
	for _, src := range settings.Sources {
		order = append(order, src.Name)
		if err := s.saveSource(src); err != nil {
			return err
		}
	}
	if err := s.configStore.Set(keySourcesOrder, order); err != nil {
		return fmt.Errorf("save %s: %w", keySourcesOrder, err)
	}

	for taskID, configKey := range schedulerTaskKeys {
		tc := settings.Scheduler.Task(taskID)
		prefix := "scheduler." + configKey + "."
		if err := s.configStore.Set(prefix+"enabled", tc.Enabled); err != nil {
			return fmt.Errorf("save scheduler %s: %w", taskID, err)
		}
		if err := s.configStore.Set(prefix+"interval", tc.Interval.String()); err != nil {
			return fmt.Errorf("save scheduler %s: %w", taskID, err)
		}
	}

	return nil
}

func (s *SettingsService) saveSource(src domain.SourceConfig) error {
	prefix := sourceKeyPrefix + src.Name + "."
	values := []struct {
		key   string
		value any
	}{
		{"kind", src.Kind.String()},
		{"url", src.URL},
		{"enabled", src.Enabled},
		{"weight", src.Weight},
		{"timeout", src.Timeout.String()},
		{"max_retries", src.MaxRetries},
		{"features", src.Features},
		{"trust", src.Trust},
		{"rate_limit", src.RateLimit},
	}
	if src.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{"api_key", src.APIKey})
	}
	for k, v := range src.Options {
		values = append(values, struct {
			key   string
			value any
		}{sourceOptionKeyPrefix + k, v})
	}

	for _, v := range values {
		if err := s.configStore.Set(prefix+v.key, v.value); err != nil {
			return fmt.Errorf("save source %s %s: %w", src.Name, v.key, err)
		}
	}
	return nil
}

// SetRankingWeights updates the hybrid ranking weights.
func (s *SettingsService) SetRankingWeights(weights domain.RankingWeights) error {
	if err := weights.Validate(); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Ranking = weights
	return s.Save(settings)
}

// SetSourceEnabled switches a configured source on or off.
func (s *SettingsService) SetSourceEnabled(name string, enabled bool) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	found := false
	for i := range settings.Sources {
		if settings.Sources[i].Name == name {
			settings.Sources[i].Enabled = enabled
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSource, name)
	}
	return s.Save(settings)
}

// SetCacheBackend selects the result cache backend.
func (s *SettingsService) SetCacheBackend(kind domain.CacheBackendKind) error {
	if !kind.IsValid() {
		return fmt.Errorf("invalid cache backend: %s", kind)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Cache.Backend = kind
	return s.Save(settings)
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if settings.Service.Port <= 0 || settings.Service.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", settings.Service.Port))
	}
	if err := settings.Ranking.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !settings.Cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("invalid cache backend: %s", settings.Cache.Backend))
	}
	if settings.Cache.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid cache max_size: %d", settings.Cache.MaxSize))
	}
	if !settings.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("invalid storage backend: %s", settings.Storage.Backend))
	}

	seen := make(map[string]bool, len(settings.Sources))
	for _, src := range settings.Sources {
		if seen[src.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate source %s", domain.ErrInvalidInput, src.Name))
		}
		seen[src.Name] = true
		if src.Enabled {
			if err := src.Validate(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get(keySchedulerEnabled); exists {
		defaults.Enabled = s.configStore.GetBool(keySchedulerEnabled)
	}

	for taskID, configKey := range schedulerTaskKeys {
		prefix := "scheduler." + configKey + "."
		taskCfg := defaults.Tasks[taskID]
		taskCfg.Enabled = s.getBool(prefix+"enabled", taskCfg.Enabled)
		taskCfg.Interval = s.getDuration(prefix+"interval", taskCfg.Interval)
		defaults.Tasks[taskID] = taskCfg
	}

	return defaults
}

// sourceOptionNames merges the known option names with any others found
// under prefix, so kind-specific options need no registration.
func sourceOptionNames(keys []string, prefix string) []string {
	names := slices.Clone(sourceOptionKeys)
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if name != "" && !strings.Contains(name, ".") && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// getSources reads the source table. sources.order, when set, selects and
// orders the sources; built-in names start from their defaults.
func (s *SettingsService) getSources(defaults []domain.SourceConfig) []domain.SourceConfig {
	byName := make(map[string]domain.SourceConfig, len(defaults))
	names := make([]string, 0, len(defaults))
	for _, d := range defaults {
		byName[d.Name] = d
		names = append(names, d.Name)
	}
	if order := s.configStore.GetStringSlice(keySourcesOrder); len(order) > 0 {
		names = order
	}

	sources := make([]domain.SourceConfig, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		base, ok := byName[name]
		if !ok {
			base = domain.SourceConfig{Name: name, Kind: domain.SourceKind(name)}
		}
		sources = append(sources, s.getSource(base))
	}
	return sources
}

func (s *SettingsService) getSource(base domain.SourceConfig) domain.SourceConfig {
	prefix := sourceKeyPrefix + base.Name + "."

	src := base
	src.Kind = domain.SourceKind(s.getString(prefix+"kind", base.Kind.String()))
	src.URL = s.getString(prefix+"url", base.URL)
	src.Enabled = s.getBool(prefix+"enabled", base.Enabled)
	src.Weight = s.getFloat(prefix+"weight", base.Weight)
	src.Timeout = s.getDuration(prefix+"timeout", base.Timeout)
	src.MaxRetries = s.getInt(prefix+"max_retries", base.MaxRetries)
	src.Trust = s.getFloat(prefix+"trust", base.Trust)
	src.RateLimit = s.getFloat(prefix+"rate_limit", base.RateLimit)
	src.APIKey = s.getString(prefix+"api_key", base.APIKey)
	if features := s.configStore.GetStringSlice(prefix + "features"); len(features) > 0 {
		src.Features = features
	}

	options := make(map[string]string, len(base.Options))
	for k, v := range base.Options {
		options[k] = v
	}
	optPrefix := prefix + sourceOptionKeyPrefix
	for _, k := range sourceOptionNames(s.configStore.Keys(optPrefix), optPrefix) {
		if v := s.configStore.GetString(prefix + sourceOptionKeyPrefix + k); v != "" {
			options[k] = v
		} else if n := s.configStore.GetInt(prefix + sourceOptionKeyPrefix + k); n != 0 {
			options[k] = strconv.Itoa(n)
		}
	}
	if len(options) > 0 {
		src.Options = options
	}

	return src
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
	if val == 0 {
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

// getFloat accepts TOML floats and integers and numeric strings.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getDuration accepts duration strings ("5s", "1m") or a number of seconds.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return defaultVal
}

func (s *SettingsService) getCacheBackend(defaultVal domain.CacheBackendKind) domain.CacheBackendKind {
	val := s.configStore.GetString(keyCacheBackend)
	if val == "" {
		return defaultVal
	}
	kind := domain.CacheBackendKind(val)
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}

func (s *SettingsService) getStorageBackend(defaultVal domain.StorageBackendKind) domain.StorageBackendKind {
	val := s.configStore.GetString(keyStorageBackend)
	if val == "" {
		return defaultVal
	}
	kind := domain.StorageBackendKind(val)
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}
