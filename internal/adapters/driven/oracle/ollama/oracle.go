// Package ollama provides an Oracle adapter using a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure Oracle implements the interface.
var _ driven.Oracle = (*Oracle)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Ollama oracle.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: llama3.2).
	Model string

	// Timeout is the HTTP client timeout (default: 120s).
	// Callers still bound each call with their own context.
	Timeout time.Duration

	// Temperature is the sampling temperature. Zero keeps the model default.
	Temperature float64
}

// Oracle answers prompts with a local model.
type Oracle struct {
	client      *api.Client
	model       string
	temperature float64
}

// New creates a new Ollama oracle.
func New(cfg Config) (*Oracle, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	return &Oracle{
		client:      api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Infer sends a single non-streaming generate request.
func (o *Oracle) Infer(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
	}
	if o.temperature > 0 {
		req.Options = map[string]any{"temperature": o.temperature}
	}

	var text strings.Builder
	err := o.client.Generate(ctx, req, func(gr api.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: generate: %w", err)
	}
	return text.String(), nil
}

// ModelName returns the name of the model being used.
func (o *Oracle) ModelName() string {
	return o.model
}

// Ping lists local models, which validates connectivity without running inference.
func (o *Oracle) Ping(ctx context.Context) error {
	if _, err := o.client.List(ctx); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (o *Oracle) Close() error {
	return nil
}
