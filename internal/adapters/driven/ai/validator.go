package ai

import (
	"context"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator validates AI provider configurations.
type ConfigValidator struct{}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateOracle validates an oracle configuration by pinging the provider.
func (v *ConfigValidator) ValidateOracle(config *domain.OracleSettings) error {
	return ValidateOracleConfig(context.Background(), config)
}

// ValidateEmbedder validates an embedder configuration by pinging the provider.
func (v *ConfigValidator) ValidateEmbedder(config *domain.EmbedderSettings) error {
	return ValidateEmbedderConfig(context.Background(), config)
}
