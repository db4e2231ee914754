package driven

import "github.com/custodia-labs/boltindex/internal/core/domain"

// AIConfigValidator validates AI provider configurations.
// Implementations verify that configurations are valid by testing connectivity
// to the underlying AI services.
type AIConfigValidator interface {
	// ValidateOracle validates an oracle configuration by pinging the provider.
	// Returns nil if configuration is valid or not configured.
	ValidateOracle(config *domain.OracleSettings) error

	// ValidateEmbedder validates an embedder configuration by pinging the provider.
	// Returns nil if configuration is valid or not configured.
	ValidateEmbedder(config *domain.EmbedderSettings) error
}
