package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()
	require.NoError(t, err)

	defaults := domain.DefaultSettings()
	assert.Equal(t, defaults.Storage.Backend, settings.Storage.Backend)
	assert.Equal(t, defaults.Generator, settings.Generator)
	assert.Equal(t, defaults.Chunk, settings.Chunk)
	assert.Equal(t, defaults.Engine, settings.Engine)
	assert.Equal(t, defaults.Resources, settings.Resources)
	assert.Equal(t, domain.AIProviderLocal, settings.Embedder.Provider)
	assert.Equal(t, "hashing-v1", settings.Embedder.Model)
	assert.False(t, settings.Oracle.IsConfigured())
	assert.Equal(t, domain.IndexHNSW, settings.Index.Strategy)
	assert.Equal(t, defaults.Generator.Dimension, settings.Index.Dimension)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("oracle.provider", "ollama")
	_ = store.Set("oracle.rate_per_second", 2)
	_ = store.Set("generator.dimension", 128)
	_ = store.Set("generator.fusion", "projection")
	_ = store.Set("generator.oracle_timeout", "5s")
	_ = store.Set("generator.cache_size", 0)
	_ = store.Set("chunk.size", 64)
	_ = store.Set("chunk.overlap", 0)
	_ = store.Set("index.strategy", "hybrid")
	_ = store.Set("index.hybrid.inner", "flat")
	_ = store.Set("engine.workers", 8)
	_ = store.Set("engine.max_retries", 0)
	_ = store.Set("engine.wall_clock_budget", "1h")
	_ = store.Set("resources.oracle", 1)

	settings, err := NewSettingsService(store).Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.Oracle.Provider)
	assert.Equal(t, "llama3.2", settings.Oracle.Model)
	assert.InDelta(t, 2.0, settings.Oracle.RatePerSecond, 1e-9)
	assert.Equal(t, 128, settings.Generator.Dimension)
	assert.Equal(t, 128, settings.Index.Dimension)
	assert.Equal(t, domain.FusionProjection, settings.Generator.Fusion)
	assert.Equal(t, 5*time.Second, settings.Generator.OracleTimeout)
	assert.Zero(t, settings.Generator.CacheSize)
	assert.Equal(t, 64, settings.Chunk.Size)
	assert.Zero(t, settings.Chunk.Overlap)
	assert.Equal(t, domain.IndexHybrid, settings.Index.Strategy)
	assert.Equal(t, domain.IndexFlat, settings.Index.Hybrid.Inner)
	assert.Equal(t, 8, settings.Engine.Workers)
	assert.Zero(t, settings.Engine.MaxRetries)
	assert.Equal(t, time.Hour, settings.Engine.WallClockBudget)
	assert.Equal(t, int64(1), settings.Resources.Capacities[domain.ResourceOracle])
	assert.Equal(t, int64(4), settings.Resources.Capacities[domain.ResourceCPU])
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("oracle.provider", "invalid_provider")
	_ = store.Set("index.metric", "manhattan")
	_ = store.Set("engine.retry_base_delay", "soon")

	settings, err := NewSettingsService(store).Get()
	require.NoError(t, err)

	defaults := domain.DefaultSettings()
	assert.Equal(t, defaults.Oracle.Provider, settings.Oracle.Provider)
	assert.Equal(t, defaults.Index.Metric, settings.Index.Metric)
	assert.Equal(t, defaults.Engine.RetryBaseDelay, settings.Engine.RetryBaseDelay)
}

func TestSettingsService_Get_RejectsBadChunking(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("chunk.size", 16)
	_ = store.Set("chunk.overlap", 16)

	_, err := NewSettingsService(store).Get()
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettingsService_Get_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	store := memory.NewConfigStore()
	_ = store.Set("oracle.provider", "anthropic")

	settings, err := NewSettingsService(store).Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env", settings.Oracle.APIKey)
	assert.True(t, settings.Oracle.IsConfigured())
}

func TestSettingsService_SetOracleProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.SetOracleProvider(domain.AIProviderOllama, "", ""))
	assert.Equal(t, "ollama", store.GetString("oracle.provider"))
	assert.Equal(t, "llama3.2", store.GetString("oracle.model"))
	assert.Equal(t, "http://localhost:11434", store.GetString("oracle.base_url"))

	err := service.SetOracleProvider(domain.AIProviderOpenAI, "gpt-4o", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, service.SetOracleProvider(domain.AIProviderOpenAI, "gpt-4o", "sk-test"))
	assert.Equal(t, "sk-test", store.GetString("oracle.api_key"))
	assert.Empty(t, store.GetString("oracle.base_url"))

	err = service.SetOracleProvider(domain.AIProviderLocal, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettingsService_SetEmbedderProvider(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.SetEmbedderProvider(domain.AIProviderLocal, "", ""))
	assert.Equal(t, "hashing-v1", store.GetString("embedder.model"))

	err := service.SetEmbedderProvider(domain.AIProviderAnthropic, "", "key")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set("engine.workers", 2))
	assert.Equal(t, 2, store.GetInt("engine.workers"))
	assert.ErrorIs(t, service.Set("", 1), domain.ErrValidation)
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())
	assert.Equal(t, domain.DefaultSettings().Generator, service.GetDefaults().Generator)
}
