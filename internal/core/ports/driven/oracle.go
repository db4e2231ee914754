package driven

import "context"

// Oracle is an external language-understanding model.
// It is untrusted and possibly slow: callers bound every call with a timeout.
//
// Implementations include:
//   - Ollama (local models)
//   - OpenAI (chat completions)
//   - Anthropic (messages)
type Oracle interface {
	// Infer sends a prompt and returns the model's text response.
	Infer(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
