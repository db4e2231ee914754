package domain

import (
	"fmt"
	"time"
)

// AIProvider identifies a provider for the oracle or the text embedder.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API. Oracle only.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderLocal is the in-process hashing embedder. Embedder only.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs on this machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderLocal:
		return "Local hashing embedder"
	default:
		return unknownDescription
	}
}

// StorageBackend selects where blobs and checkpoints are persisted.
type StorageBackend string

// Storage backends.
const (
	StorageSQLite   StorageBackend = "sqlite"
	StorageMemory   StorageBackend = "memory"
	StoragePostgres StorageBackend = "postgres"
	StorageMinio    StorageBackend = "minio"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StorageMemory, StoragePostgres, StorageMinio:
		return true
	default:
		return false
	}
}

// OracleSettings configures the language-understanding oracle.
type OracleSettings struct {
	// Provider is the oracle service provider. Empty disables the oracle.
	Provider AIProvider

	// Model is the model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// RatePerSecond limits oracle calls. Zero means unlimited.
	RatePerSecond float64

	// Burst is the rate limiter burst size.
	Burst int
}

// IsConfigured returns true if the oracle provider is set up.
func (o OracleSettings) IsConfigured() bool {
	if !o.Provider.IsValid() || o.Provider == AIProviderLocal {
		return false
	}
	if o.Provider.RequiresAPIKey() && o.APIKey == "" {
		return false
	}
	return true
}

// EmbedderSettings configures the text embedder used on oracle responses.
type EmbedderSettings struct {
	// Provider is the embedding provider. Defaults to the local hashing embedder.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedder provider is set up.
func (e EmbedderSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// StorageSettings configures persistence.
type StorageSettings struct {
	Backend StorageBackend

	// DataDir holds the sqlite database and index files.
	DataDir string

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string

	// Minio settings for the object storage backend.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Settings is the full application configuration.
type Settings struct {
	Storage   StorageSettings
	Oracle    OracleSettings
	Embedder  EmbedderSettings
	Generator GeneratorConfig
	Chunk     ChunkStrategy
	Index     IndexConfig
	Engine    EngineConfig
	Resources ResourceConfig
}

// Validate checks the settings that would otherwise fail late, at first use.
func (s *Settings) Validate() error {
	if !s.Storage.Backend.IsValid() {
		return fmt.Errorf("%w: storage backend %q", ErrUnsupportedType, s.Storage.Backend)
	}
	if s.Storage.Backend == StoragePostgres && s.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres backend needs storage.postgres.dsn", ErrValidation)
	}
	if s.Storage.Backend == StorageMinio && s.Storage.MinioEndpoint == "" {
		return fmt.Errorf("%w: minio backend needs storage.minio.endpoint", ErrValidation)
	}
	if err := s.Chunk.Validate(); err != nil {
		return err
	}
	if s.Index.Dimension != s.Generator.Dimension {
		return fmt.Errorf("%w: index dimension %d differs from generator dimension %d",
			ErrValidation, s.Index.Dimension, s.Generator.Dimension)
	}
	return s.Index.Validate()
}

// DefaultSettings returns the application defaults.
func DefaultSettings() Settings {
	return Settings{
		Storage: StorageSettings{
			Backend:     StorageSQLite,
			MinioBucket: "boltindex",
		},
		// Oracle is left unconfigured; embeddings degrade to structural-only.
		Oracle: OracleSettings{
			Burst: 1,
		},
		Embedder: EmbedderSettings{
			Provider: AIProviderLocal,
		},
		Generator: DefaultGeneratorConfig(),
		Chunk:     DefaultChunkStrategy(ModalityText),
		Index: IndexConfig{
			Strategy:  IndexHNSW,
			Dimension: DefaultDimension,
			Metric:    MetricCosine,
			HNSW:      DefaultHNSWConfig(),
			Hybrid:    DefaultHybridConfig(),
		},
		Engine:    DefaultEngineConfig(),
		Resources: DefaultResourceConfig(),
	}
}

// DefaultOracleModels returns default models for each oracle provider.
func DefaultOracleModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}

// DefaultEmbedderModels returns default models for each embedder provider.
func DefaultEmbedderModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderLocal:  "hashing-v1",
	}
}

// DefaultPingTimeout bounds connectivity checks at startup.
const DefaultPingTimeout = 5 * time.Second
