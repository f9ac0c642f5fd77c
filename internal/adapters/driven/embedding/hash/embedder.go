// Package hash provides a feature-hashing embedder that needs no model
// service.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// DefaultDimensions is the vector size when none is configured.
const DefaultDimensions = 256

// Embedder maps text to a fixed-size vector by feature hashing its
// lower-cased words and adjacent word pairs. Vectors are L2-normalised so
// cosine similarity reflects shared vocabulary.
type Embedder struct {
	size int
}

// New creates an embedder producing vectors of the given size.
func New(size int) *Embedder {
	if size <= 0 {
		size = DefaultDimensions
	}
	return &Embedder{size: size}
}

// Embed returns the vector for text. Text without words yields a zero
// vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.Vector(text), nil
}

// Vector is Embed without the context.
func (e *Embedder) Vector(text string) []float32 {
	vec := make([]float32, e.size)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, w := range words {
		e.add(vec, w, 1)
		if i > 0 {
			e.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int {
	return e.size
}

// ModelName identifies the hashing scheme and size.
func (e *Embedder) ModelName() string {
	return fmt.Sprintf("fnv-hash-%d", e.size)
}

// Ping always succeeds.
func (e *Embedder) Ping(_ context.Context) error {
	return nil
}

// Close does nothing.
func (e *Embedder) Close() error {
	return nil
}

// add hashes feature into a bucket. The top bit picks the sign so
// collisions tend to cancel rather than accumulate.
func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[sum%uint64(e.size)] += weight
}
