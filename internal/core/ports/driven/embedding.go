package driven

import "context"

// TextEmbedder turns text into a vector. The generator uses it to embed
// oracle responses into the semantic half of a fused embedding.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - The local hashing embedder, which needs no network
type TextEmbedder interface {
	// Embed generates a vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the native vector size of the model.
	// The generator pads or truncates to its own dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
