// Package ai provides factory functions for creating oracle and embedder adapters.
package ai

import (
	"context"
	"fmt"

	localembed "github.com/custodia-labs/boltindex/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/custodia-labs/boltindex/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/boltindex/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/oracle"
	anthropicoracle "github.com/custodia-labs/boltindex/internal/adapters/driven/oracle/anthropic"
	ollamaoracle "github.com/custodia-labs/boltindex/internal/adapters/driven/oracle/ollama"
	openaioracle "github.com/custodia-labs/boltindex/internal/adapters/driven/oracle/openai"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	Oracle   driven.Oracle
	Embedder driven.TextEmbedder
	Warnings []string // Non-fatal issues that caused fallback.
	Degraded bool     // True if the oracle is absent and embeddings are structural-only.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Oracle != nil {
		r.Oracle.Close()
	}
	if r.Embedder != nil {
		r.Embedder.Close()
	}
}

// Init builds the oracle and embedder from settings. Unreachable services are
// reported as warnings and left nil so the generator degrades instead of failing.
func Init(ctx context.Context, settings *domain.Settings) *InitResult {
	result := &InitResult{}

	emb, err := CreateAndValidateEmbedder(ctx, &settings.Embedder)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.Embedder = emb

	orc, err := CreateAndValidateOracle(ctx, &settings.Oracle)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.Oracle = orc

	result.Degraded = result.Oracle == nil || result.Embedder == nil
	return result
}

// CreateAndValidateOracle creates an oracle and validates connectivity.
// The returned oracle is rate limited per the settings.
func CreateAndValidateOracle(ctx context.Context, settings *domain.OracleSettings) (driven.Oracle, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	o, err := CreateOracle(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'boltindex settings' to fix",
			domain.ErrOracleUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, domain.DefaultPingTimeout)
	defer cancel()

	if err := o.Ping(pingCtx); err != nil {
		o.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'boltindex settings' to fix",
			domain.ErrOracleUnavailable, err)
	}

	return oracle.NewRateLimited(o, oracle.RateLimitConfig{
		RequestsPerSecond: settings.RatePerSecond,
		BurstSize:         settings.Burst,
	}), nil
}

// CreateAndValidateEmbedder creates a text embedder and validates connectivity.
func CreateAndValidateEmbedder(ctx context.Context, settings *domain.EmbedderSettings) (driven.TextEmbedder, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	e, err := CreateEmbedder(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: embedder: %w. Run 'boltindex settings' to fix",
			domain.ErrValidation, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, domain.DefaultPingTimeout)
	defer cancel()

	if err := e.Ping(pingCtx); err != nil {
		e.Close()
		return nil, fmt.Errorf("embedder unreachable (%w). Run 'boltindex settings' to fix", err)
	}
	return e, nil
}

// ValidateOracleConfig creates an oracle and pings it.
func ValidateOracleConfig(ctx context.Context, settings *domain.OracleSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	o, err := CreateOracle(settings)
	if err != nil {
		return err
	}
	defer o.Close()

	pingCtx, cancel := context.WithTimeout(ctx, domain.DefaultPingTimeout)
	defer cancel()
	return o.Ping(pingCtx)
}

// ValidateEmbedderConfig creates an embedder and pings it.
func ValidateEmbedderConfig(ctx context.Context, settings *domain.EmbedderSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	e, err := CreateEmbedder(settings)
	if err != nil {
		return err
	}
	defer e.Close()

	pingCtx, cancel := context.WithTimeout(ctx, domain.DefaultPingTimeout)
	defer cancel()
	return e.Ping(pingCtx)
}

// CreateOracle creates the oracle adapter for the configured provider.
func CreateOracle(settings *domain.OracleSettings) (driven.Oracle, error) {
	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaoracle.New(ollamaoracle.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderOpenAI:
		return openaioracle.New(openaioracle.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicoracle.New(anthropicoracle.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("%w: oracle provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateEmbedder creates the text embedder for the configured provider.
func CreateEmbedder(settings *domain.EmbedderSettings) (driven.TextEmbedder, error) {
	switch settings.Provider {
	case domain.AIProviderLocal:
		return localembed.New(localembed.DefaultDimensions), nil

	case domain.AIProviderOllama:
		return ollamaembed.New(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderOpenAI:
		return openaiembed.New(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		// Anthropic does not offer embeddings.
		return nil, fmt.Errorf("%w: anthropic does not support embeddings, use local, ollama or openai",
			domain.ErrUnsupportedType)

	default:
		return nil, fmt.Errorf("%w: embedder provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}
