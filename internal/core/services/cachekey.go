package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gowebpki/jcs"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// cacheKeyPrefix namespaces result cache keys.
const cacheKeyPrefix = "query:"

// cacheSignature is the canonical form of a request for caching.
type cacheSignature struct {
	Query   string              `json:"query"`
	Mode    domain.QueryMode    `json:"mode"`
	Sources []string            `json:"sources"`
	Options domain.QueryOptions `json:"options"`
}

// CacheKey returns the cache key for a request. Requests that differ only
// in source order, duplicate source names, or option field order map to
// the same key.
func CacheKey(req domain.QueryRequest) (string, error) {
	sources := slices.Clone(req.Sources)
	slices.Sort(sources)
	sources = slices.Compact(sources)
	if sources == nil {
		sources = []string{}
	}

	sig := cacheSignature{
		Query:   req.Query,
		Mode:    req.EffectiveMode(),
		Sources: sources,
		Options: req.EffectiveOptions(),
	}

	raw, err := json.Marshal(sig)
	if err != nil {
		return "", fmt.Errorf("marshal cache signature: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalise cache signature: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}
