package driven

import "context"

// EmbeddingService turns text into vectors for similarity search. The
// Qdrant memory source embeds both stored content and queries with it, so
// one collection must always be written and read with the same model.
//
// Implementations:
//   - feature hashing (default, no model service)
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI-compatible APIs (text-embedding-3-small, text-embedding-3-large)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 256, 768, 1536).
	// This must match the collection's vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
