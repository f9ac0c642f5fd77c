package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Per-source call defaults.
const (
	// DefaultSourceTimeout bounds a single source call when none is configured.
	DefaultSourceTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of attempts per source call.
	DefaultMaxRetries = 3

	// UnknownSourceTrust is the trust score for sources with no configured trust.
	UnknownSourceTrust = 0.5
)

// SourceKind identifies which adapter serves a memory source.
type SourceKind string

// Supported source kinds.
const (
	SourceKindCognee     SourceKind = "cognee"
	SourceKindMemento    SourceKind = "memento"
	SourceKindMemOS      SourceKind = "memos"
	SourceKindLlamaCloud SourceKind = "llamacloud"
	SourceKindNeo4j      SourceKind = "neo4j"
	SourceKindQdrant     SourceKind = "qdrant"
	SourceKindLocal      SourceKind = "local"
)

// IsValid returns true if the kind has an adapter.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindCognee, SourceKindMemento, SourceKindMemOS, SourceKindLlamaCloud,
		SourceKindNeo4j, SourceKindQdrant, SourceKindLocal:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k SourceKind) String() string {
	return string(k)
}

// Feature tags advertised by memory sources. The analyzer matches
// needed features against these when picking sources.
const (
	FeatureSemanticSearch       = "semantic_search"
	FeatureGraphTraversal       = "graph_traversal"
	FeatureConceptLinking       = "concept_linking"
	FeatureKeyValue             = "key_value"
	FeatureFastRetrieval        = "fast_retrieval"
	FeatureSimpleStorage        = "simple_storage"
	FeatureMultiTypeMemory      = "multi_type_memory"
	FeatureUserContext          = "user_context"
	FeatureActivationMemory     = "activation_memory"
	FeatureDocumentSearch       = "document_search"
	FeatureStructuredExtraction = "structured_extraction"
	FeatureRAG                  = "rag"
	FeatureVectorSearch         = "vector_search"
)

// sourceTrust is the fixed trust table for the well-known backends.
var sourceTrust = map[string]float64{
	"cognee":     0.9,
	"llamacloud": 0.85,
	"memos":      0.8,
	"memento":    0.7,
}

// DefaultTrust returns the built-in trust score for a source name.
func DefaultTrust(name string) float64 {
	if t, ok := sourceTrust[name]; ok {
		return t
	}
	return UnknownSourceTrust
}

// SourceConfig describes a configured memory source and its call budget.
type SourceConfig struct {
	// Name is the unique name used in requests and results.
	Name string `json:"name"`

	// Kind selects the adapter.
	Kind SourceKind `json:"kind"`

	// URL is the backend endpoint.
	URL string `json:"url"`

	// Enabled sources take part in queries.
	Enabled bool `json:"enabled"`

	// Weight is the relative importance of the source.
	Weight float64 `json:"weight"`

	// Timeout bounds a single call attempt.
	Timeout time.Duration `json:"timeout"`

	// MaxRetries is the total number of attempts per call.
	MaxRetries int `json:"max_retries"`

	// Features are capability tags used for smart routing.
	Features []string `json:"features"`

	// Trust overrides the built-in trust score when positive.
	Trust float64 `json:"trust,omitempty"`

	// APIKey authenticates against the backend. Never serialised.
	APIKey string `json:"-"`

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64 `json:"rate_limit,omitempty"`

	// Options are kind-specific settings (collection, index, user).
	Options map[string]string `json:"options,omitempty"`
}

// HasFeature reports whether the source advertises the feature.
func (c SourceConfig) HasFeature(feature string) bool {
	return slices.Contains(c.Features, feature)
}

// HasAnyFeature reports whether the source advertises any of the features.
func (c SourceConfig) HasAnyFeature(features []string) bool {
	for _, f := range features {
		if c.HasFeature(f) {
			return true
		}
	}
	return false
}

// EffectiveTimeout returns the call timeout, defaulting to 5s.
func (c SourceConfig) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultSourceTimeout
	}
	return c.Timeout
}

// EffectiveMaxRetries returns the attempt count, defaulting to 3.
func (c SourceConfig) EffectiveMaxRetries() int {
	if c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

// EffectiveTrust returns the configured trust or the built-in table value.
func (c SourceConfig) EffectiveTrust() float64 {
	if c.Trust > 0 {
		return c.Trust
	}
	return DefaultTrust(c.Name)
}

// Option returns a kind-specific option or the fallback.
func (c SourceConfig) Option(key, fallback string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Validate checks that the descriptor can be served by an adapter.
func (c SourceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: source name is required", ErrInvalidInput)
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("%w: source %s has unknown kind %q", ErrUnsupportedType, c.Name, c.Kind)
	}
	if c.Kind != SourceKindLocal && c.URL == "" {
		return fmt.Errorf("%w: source %s requires a url", ErrInvalidInput, c.Name)
	}
	if c.Weight < 0 || c.Trust < 0 || c.RateLimit < 0 {
		return fmt.Errorf("%w: source %s has a negative weight, trust or rate limit", ErrInvalidInput, c.Name)
	}
	return nil
}

// DefaultSourceConfigs returns the built-in source table.
// The four HTTP backends are enabled; direct graph, vector and local
// sources must be switched on in configuration.
func DefaultSourceConfigs() []SourceConfig {
	return []SourceConfig{
		{
			Name:       "cognee",
			Kind:       SourceKindCognee,
			URL:        "http://localhost:8000",
			Enabled:    true,
			Weight:     0.3,
			Timeout:    5 * time.Second,
			MaxRetries: DefaultMaxRetries,
			Features:   []string{FeatureSemanticSearch, FeatureGraphTraversal, FeatureConceptLinking},
		},
		{
			Name:       "memento",
			Kind:       SourceKindMemento,
			URL:        "http://localhost:8001",
			Enabled:    true,
			Weight:     0.2,
			Timeout:    3 * time.Second,
			MaxRetries: DefaultMaxRetries,
			Features:   []string{FeatureKeyValue, FeatureFastRetrieval, FeatureSimpleStorage},
		},
		{
			Name:       "memos",
			Kind:       SourceKindMemOS,
			URL:        "http://localhost:8002",
			Enabled:    true,
			Weight:     0.3,
			Timeout:    5 * time.Second,
			MaxRetries: DefaultMaxRetries,
			Features:   []string{FeatureMultiTypeMemory, FeatureUserContext, FeatureActivationMemory},
			Options:    map[string]string{"user_id": "default"},
		},
		{
			Name:       "llamacloud",
			Kind:       SourceKindLlamaCloud,
			URL:        "http://localhost:8003",
			Enabled:    true,
			Weight:     0.2,
			Timeout:    10 * time.Second,
			MaxRetries: DefaultMaxRetries,
			Features:   []string{FeatureDocumentSearch, FeatureStructuredExtraction, FeatureRAG},
			Options:    map[string]string{"index": "main-docs"},
		},
		{
			Name:       "graph",
			Kind:       SourceKindNeo4j,
			URL:        "neo4j://localhost:7687",
			Weight:     0.2,
			Timeout:    5 * time.Second,
			MaxRetries: DefaultMaxRetries,
			Features:   []string{FeatureGraphTraversal, FeatureConceptLinking},
			Options:    map[string]string{"username": "neo4j", "database": "neo4j"},
		},
		{
			Name:       "vectors",
			Kind:       SourceKindQdrant,
			URL:        "localhost:6334",
			Weight:     0.2,
			Timeout:    5 * time.Second,
			MaxRetries: DefaultMaxRetries,
			Features:   []string{FeatureSemanticSearch, FeatureVectorSearch},
			Options:    map[string]string{"collection": "memories"},
		},
		{
			Name:       "local",
			Kind:       SourceKindLocal,
			Weight:     0.1,
			Timeout:    2 * time.Second,
			MaxRetries: 1,
			Features:   []string{FeatureKeyValue, FeatureFastRetrieval, FeatureSimpleStorage},
		},
	}
}

// secretOptions are option keys whose values are never shown.
var secretOptions = []string{"password", "secret", "token", "key"}

// Redacted returns a copy safe to display: the API key is cleared and
// secret-looking options are masked.
func (c SourceConfig) Redacted() SourceConfig {
	c.APIKey = ""
	c.Features = slices.Clone(c.Features)
	if c.Options != nil {
		opts := make(map[string]string, len(c.Options))
		for k, v := range c.Options {
			for _, s := range secretOptions {
				if strings.Contains(strings.ToLower(k), s) {
					v = "***"
					break
				}
			}
			opts[k] = v
		}
		c.Options = opts
	}
	return c
}
