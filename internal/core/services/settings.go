package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStorageBackend  = "storage.backend"
	keyStorageDataDir  = "storage.data_dir"
	keyPostgresDSN     = "storage.postgres.dsn"
	keyMinioEndpoint   = "storage.minio.endpoint"
	keyMinioAccessKey  = "storage.minio.access_key"
	keyMinioSecretKey  = "storage.minio.secret_key"
	keyMinioBucket     = "storage.minio.bucket"
	keyMinioUseSSL     = "storage.minio.use_ssl"
	keyOracleProvider  = "oracle.provider"
	keyOracleModel     = "oracle.model"
	keyOracleBaseURL   = "oracle.base_url"
	keyOracleAPIKey    = "oracle.api_key"
	keyOracleRate      = "oracle.rate_per_second"
	keyOracleBurst     = "oracle.burst"
	keyEmbedProvider   = "embedder.provider"
	keyEmbedModel      = "embedder.model"
	keyEmbedBaseURL    = "embedder.base_url"
	keyEmbedAPIKey     = "embedder.api_key"
	keyGenDimension    = "generator.dimension"
	keyGenFusion       = "generator.fusion"
	keyGenStructWeight = "generator.structural_weight"
	keyGenSemWeight    = "generator.semantic_weight"
	keyGenTimeout      = "generator.oracle_timeout"
	keyGenBudget       = "generator.prompt_budget"
	keyGenCacheSize    = "generator.cache_size"
	keyGenSeed         = "generator.projection_seed"
	keyChunkSize       = "chunk.size"
	keyChunkOverlap    = "chunk.overlap"
	keyChunkBoundary   = "chunk.boundary"
	keyIndexStrategy   = "index.strategy"
	keyIndexMetric     = "index.metric"
	keyHNSWM           = "index.hnsw.m"
	keyHNSWEfC         = "index.hnsw.ef_construction"
	keyHNSWEfS         = "index.hnsw.ef_search"
	keyHNSWSeed        = "index.hnsw.seed"
	keyHybridInner     = "index.hybrid.inner"
	keyHybridOver      = "index.hybrid.over_fetch"
	keyHybridMaxOver   = "index.hybrid.max_over_fetch"
	keyEngineWorkers   = "engine.workers"
	keyEngineInterval  = "engine.checkpoint_interval"
	keyEngineEvery     = "engine.checkpoint_every_steps"
	keyEngineCPRetries = "engine.checkpoint_retries"
	keyEngineRetries   = "engine.max_retries"
	keyEngineBase      = "engine.retry_base_delay"
	keyEngineMax       = "engine.retry_max_delay"
	keyEngineDefer     = "engine.defer_delay"
	keyEngineBudget    = "engine.wall_clock_budget"
	keyResTimeout      = "resources.acquire_timeout"
	resourcesPrefix    = "resources."
)

// API keys fall back to the environment, which .env files populate.
var apiKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Unset or invalid keys
// keep their defaults.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()
	out := d

	out.Storage = domain.StorageSettings{
		Backend:        getEnum(s, keyStorageBackend, d.Storage.Backend),
		DataDir:        s.getString(keyStorageDataDir, d.Storage.DataDir),
		PostgresDSN:    s.getString(keyPostgresDSN, os.Getenv("BOLTINDEX_POSTGRES_DSN")),
		MinioEndpoint:  s.configStore.GetString(keyMinioEndpoint),
		MinioAccessKey: s.getString(keyMinioAccessKey, os.Getenv("MINIO_ACCESS_KEY")),
		MinioSecretKey: s.getString(keyMinioSecretKey, os.Getenv("MINIO_SECRET_KEY")),
		MinioBucket:    s.getString(keyMinioBucket, d.Storage.MinioBucket),
		MinioUseSSL:    s.getBool(keyMinioUseSSL, d.Storage.MinioUseSSL),
	}

	out.Oracle = domain.OracleSettings{
		Provider:      getEnum(s, keyOracleProvider, d.Oracle.Provider),
		BaseURL:       s.configStore.GetString(keyOracleBaseURL),
		RatePerSecond: s.getFloat(keyOracleRate, d.Oracle.RatePerSecond),
		Burst:         s.getInt(keyOracleBurst, d.Oracle.Burst),
	}
	out.Oracle.Model = s.getString(keyOracleModel, domain.DefaultOracleModels()[out.Oracle.Provider])
	out.Oracle.APIKey = s.getString(keyOracleAPIKey, os.Getenv(apiKeyEnv[out.Oracle.Provider]))

	out.Embedder = domain.EmbedderSettings{
		Provider: getEnum(s, keyEmbedProvider, d.Embedder.Provider),
		BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
	}
	out.Embedder.Model = s.getString(keyEmbedModel, domain.DefaultEmbedderModels()[out.Embedder.Provider])
	out.Embedder.APIKey = s.getString(keyEmbedAPIKey, os.Getenv(apiKeyEnv[out.Embedder.Provider]))

	out.Generator = domain.GeneratorConfig{
		Dimension:        s.getInt(keyGenDimension, d.Generator.Dimension),
		Fusion:           getEnum(s, keyGenFusion, d.Generator.Fusion),
		StructuralWeight: float32(s.getFloat(keyGenStructWeight, float64(d.Generator.StructuralWeight))),
		SemanticWeight:   float32(s.getFloat(keyGenSemWeight, float64(d.Generator.SemanticWeight))),
		OracleTimeout:    s.getDuration(keyGenTimeout, d.Generator.OracleTimeout),
		PromptBudget:     s.getInt(keyGenBudget, d.Generator.PromptBudget),
		CacheSize:        s.getIntAllowZero(keyGenCacheSize, d.Generator.CacheSize),
		ProjectionSeed:   uint64(s.getInt(keyGenSeed, int(d.Generator.ProjectionSeed))),
	}

	out.Chunk = domain.ChunkStrategy{
		Size:     s.getInt(keyChunkSize, d.Chunk.Size),
		Overlap:  s.getIntAllowZero(keyChunkOverlap, d.Chunk.Overlap),
		Boundary: getEnum(s, keyChunkBoundary, d.Chunk.Boundary),
	}

	out.Index = domain.IndexConfig{
		Strategy:  getEnum(s, keyIndexStrategy, d.Index.Strategy),
		Dimension: out.Generator.Dimension,
		Metric:    getEnum(s, keyIndexMetric, d.Index.Metric),
		HNSW: domain.HNSWConfig{
			M:              s.getInt(keyHNSWM, d.Index.HNSW.M),
			EfConstruction: s.getInt(keyHNSWEfC, d.Index.HNSW.EfConstruction),
			EfSearch:       s.getInt(keyHNSWEfS, d.Index.HNSW.EfSearch),
			Seed:           uint64(s.getInt(keyHNSWSeed, int(d.Index.HNSW.Seed))),
		},
		Hybrid: domain.HybridConfig{
			Inner:        getEnum(s, keyHybridInner, d.Index.Hybrid.Inner),
			OverFetch:    s.getInt(keyHybridOver, d.Index.Hybrid.OverFetch),
			MaxOverFetch: s.getInt(keyHybridMaxOver, d.Index.Hybrid.MaxOverFetch),
		},
	}

	out.Engine = domain.EngineConfig{
		Workers:              s.getInt(keyEngineWorkers, d.Engine.Workers),
		CheckpointInterval:   s.getDuration(keyEngineInterval, d.Engine.CheckpointInterval),
		CheckpointEverySteps: s.getIntAllowZero(keyEngineEvery, d.Engine.CheckpointEverySteps),
		CheckpointRetries:    s.getInt(keyEngineCPRetries, d.Engine.CheckpointRetries),
		MaxRetries:           s.getIntAllowZero(keyEngineRetries, d.Engine.MaxRetries),
		RetryBaseDelay:       s.getDuration(keyEngineBase, d.Engine.RetryBaseDelay),
		RetryMaxDelay:        s.getDuration(keyEngineMax, d.Engine.RetryMaxDelay),
		DeferDelay:           s.getDuration(keyEngineDefer, d.Engine.DeferDelay),
		WallClockBudget:      s.getDuration(keyEngineBudget, d.Engine.WallClockBudget),
	}

	out.Resources = domain.ResourceConfig{
		Capacities:     make(map[domain.ResourceKind]int64, len(d.Resources.Capacities)),
		AcquireTimeout: s.getDuration(keyResTimeout, d.Resources.AcquireTimeout),
	}
	for kind, capacity := range d.Resources.Capacities {
		out.Resources.Capacities[kind] = int64(s.getInt(resourcesPrefix+string(kind), int(capacity)))
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Set stores a single dotted configuration key.
func (s *SettingsService) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: config key is required", domain.ErrValidation)
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetOracleProvider configures the oracle provider.
func (s *SettingsService) SetOracleProvider(provider domain.AIProvider, model, apiKey string) error {
	settings := domain.OracleSettings{Provider: provider, Model: model, APIKey: apiKey}
	if model == "" {
		settings.Model = domain.DefaultOracleModels()[provider]
	}
	if !settings.IsConfigured() && apiKey == "" && provider.RequiresAPIKey() {
		settings.APIKey = os.Getenv(apiKeyEnv[provider])
	}
	if !settings.IsConfigured() {
		return fmt.Errorf("%w: %s cannot serve as the oracle without its credentials", domain.ErrValidation, provider)
	}
	return s.saveProvider(keyOracleProvider, keyOracleModel, keyOracleBaseURL, keyOracleAPIKey, settings.Provider, settings.Model, apiKey)
}

// SetEmbedderProvider configures the text embedder provider.
func (s *SettingsService) SetEmbedderProvider(provider domain.AIProvider, model, apiKey string) error {
	settings := domain.EmbedderSettings{Provider: provider, Model: model, APIKey: apiKey}
	if model == "" {
		settings.Model = domain.DefaultEmbedderModels()[provider]
	}
	if !settings.IsConfigured() && apiKey == "" && provider.RequiresAPIKey() {
		settings.APIKey = os.Getenv(apiKeyEnv[provider])
	}
	if !settings.IsConfigured() {
		return fmt.Errorf("%w: %s cannot serve as the text embedder", domain.ErrValidation, provider)
	}
	return s.saveProvider(keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey, settings.Provider, settings.Model, apiKey)
}

func (s *SettingsService) saveProvider(
	providerKey, modelKey, baseURLKey, apiKeyKey string,
	provider domain.AIProvider, model, apiKey string,
) error {
	if err := s.configStore.Set(providerKey, provider.String()); err != nil {
		return fmt.Errorf("save %s: %w", providerKey, err)
	}
	if err := s.configStore.Set(modelKey, model); err != nil {
		return fmt.Errorf("save %s: %w", modelKey, err)
	}

	baseURL := ""
	if provider == domain.AIProviderOllama {
		baseURL = s.getString(baseURLKey, "http://localhost:11434")
	}
	if err := s.configStore.Set(baseURLKey, baseURL); err != nil {
		return fmt.Errorf("save %s: %w", baseURLKey, err)
	}

	// Keys found in the environment are not copied into the config file.
	if apiKey != "" {
		if err := s.configStore.Set(apiKeyKey, apiKey); err != nil {
			return fmt.Errorf("save %s: %w", apiKeyKey, err)
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero distinguishes an explicit zero from an unset key.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

// getDuration reads a duration string like "45s" or "5m".
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	str := s.configStore.GetString(key)
	if str == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnum reads a closed string enum, keeping the default for invalid values.
func getEnum[T interface {
	~string
	IsValid() bool
}](s *SettingsService, key string, defaultVal T) T {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	if v := T(val); v.IsValid() {
		return v
	}
	return defaultVal
}
