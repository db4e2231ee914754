package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{name: "ollama is valid", provider: AIProviderOllama, expected: true},
		{name: "openai is valid", provider: AIProviderOpenAI, expected: true},
		{name: "anthropic is valid", provider: AIProviderAnthropic, expected: true},
		{name: "local is valid", provider: AIProviderLocal, expected: true},
		{name: "empty string is invalid", provider: AIProvider(""), expected: false},
		{name: "unknown is invalid", provider: AIProvider("gemini"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.False(t, AIProviderLocal.RequiresAPIKey())
}

func TestOracleSettings_IsConfigured(t *testing.T) {
	assert.False(t, OracleSettings{}.IsConfigured())
	assert.True(t, OracleSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, OracleSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, OracleSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
	assert.False(t, OracleSettings{Provider: AIProviderLocal}.IsConfigured(), "local cannot answer prompts")
}

func TestEmbedderSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbedderSettings{Provider: AIProviderLocal}.IsConfigured())
	assert.False(t, EmbedderSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
	assert.False(t, EmbedderSettings{Provider: AIProviderOpenAI}.IsConfigured())
}

func TestSettings_Validate(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	bad := DefaultSettings()
	bad.Storage.Backend = "s3"
	assert.ErrorIs(t, bad.Validate(), ErrUnsupportedType)

	bad = DefaultSettings()
	bad.Storage.Backend = StoragePostgres
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = DefaultSettings()
	bad.Index.Dimension = 16
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = DefaultSettings()
	bad.Chunk.Overlap = bad.Chunk.Size
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, StorageSQLite, s.Storage.Backend)
	assert.Equal(t, 384, s.Generator.Dimension)
	assert.Equal(t, 1024, s.Chunk.Size)
	assert.Equal(t, 128, s.Chunk.Overlap)
	assert.Equal(t, 10000, s.Generator.CacheSize)
	assert.NotEmpty(t, DefaultOracleModels()[AIProviderAnthropic])
	assert.NotEmpty(t, DefaultEmbedderModels()[AIProviderLocal])
}
