package domain

import "time"

// CacheBackendKind selects where query responses are cached.
type CacheBackendKind string

// Available cache backends.
const (
	// CacheBackendMemory is an in-process bounded LRU.
	CacheBackendMemory CacheBackendKind = "memory"

	// CacheBackendRedis is a shared Redis instance.
	CacheBackendRedis CacheBackendKind = "redis"
)

// IsValid returns true if the cache backend is recognised.
func (k CacheBackendKind) IsValid() bool {
	switch k {
	case CacheBackendMemory, CacheBackendRedis:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k CacheBackendKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the backend.
func (k CacheBackendKind) Description() string {
	switch k {
	case CacheBackendMemory:
		return "Memory (in-process LRU)"
	case CacheBackendRedis:
		return "Redis (shared)"
	default:
		return unknownDescription
	}
}

// StorageBackendKind selects where scheduler state and local memories live.
type StorageBackendKind string

// Available storage backends.
const (
	StorageBackendSQLite StorageBackendKind = "sqlite"
	StorageBackendMemory StorageBackendKind = "memory"
)

// IsValid returns true if the storage backend is recognised.
func (k StorageBackendKind) IsValid() bool {
	return k == StorageBackendSQLite || k == StorageBackendMemory
}

// ServiceSettings holds process-level configuration.
type ServiceSettings struct {
	// Name is reported by the health endpoint.
	Name string

	// Host is the HTTP bind address.
	Host string

	// Port is the HTTP listen port.
	Port int

	// MaxConcurrentQueries bounds in-flight source calls per fan-out.
	MaxConcurrentQueries int

	// QueryTimeout bounds a whole request when positive.
	QueryTimeout time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogJSON switches log output to JSON.
	LogJSON bool
}

// CacheSettings holds result cache configuration.
type CacheSettings struct {
	// Backend selects memory or redis.
	Backend CacheBackendKind

	// TTL is how long a response stays fresh.
	TTL time.Duration

	// MaxSize bounds the number of cached responses.
	MaxSize int

	// RedisURL is used by the redis backend.
	RedisURL string

	// KeyPrefix namespaces keys in a shared redis.
	KeyPrefix string
}

// RetrySettings holds the per-source retry backoff.
type RetrySettings struct {
	// InitialInterval is the first backoff wait.
	InitialInterval time.Duration

	// MaxInterval caps each backoff wait.
	MaxInterval time.Duration

	// Multiplier grows the wait between attempts.
	Multiplier float64
}

// TelemetrySettings holds OpenTelemetry export configuration.
type TelemetrySettings struct {
	// Enabled turns on trace and metric export.
	Enabled bool

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// Insecure disables TLS to the collector.
	Insecure bool

	// SampleRatio is the fraction of traces sampled.
	SampleRatio float64
}

// StorageSettings holds local persistence configuration.
type StorageSettings struct {
	// Backend selects sqlite or memory.
	Backend StorageBackendKind

	// Path is the SQLite data directory. Empty means ~/.memquery/data.
	Path string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Service holds process settings.
	Service ServiceSettings

	// Cache holds result cache settings.
	Cache CacheSettings

	// Ranking holds the hybrid ranking weights.
	Ranking RankingWeights

	// Retry holds per-source retry backoff settings.
	Retry RetrySettings

	// Sources is the ordered source table. Order is fan-out order.
	Sources []SourceConfig

	// Telemetry holds OpenTelemetry settings.
	Telemetry TelemetrySettings

	// Scheduler holds background task settings.
	Scheduler SchedulerConfig

	// Storage holds local persistence settings.
	Storage StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Service: ServiceSettings{
			Name:                 "memquery",
			Host:                 "0.0.0.0",
			Port:                 8505,
			MaxConcurrentQueries: 50,
			LogLevel:             "info",
		},
		Cache: CacheSettings{
			Backend:   CacheBackendMemory,
			TTL:       300 * time.Second,
			MaxSize:   1000,
			RedisURL:  "redis://localhost:6379/0",
			KeyPrefix: "memquery:",
		},
		Ranking: DefaultRankingWeights(),
		Retry: RetrySettings{
			InitialInterval: 2 * time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2,
		},
		Sources: DefaultSourceConfigs(),
		Telemetry: TelemetrySettings{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRatio: 1.0,
		},
		Scheduler: DefaultSchedulerConfig(),
		Storage: StorageSettings{
			Backend: StorageBackendSQLite,
		},
	}
}

// EnabledSources returns enabled sources in configured order.
func (s AppSettings) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(s.Sources))
	for _, src := range s.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// AllCacheBackends returns all available cache backends.
func AllCacheBackends() []CacheBackendKind {
	return []CacheBackendKind{CacheBackendMemory, CacheBackendRedis}
}
