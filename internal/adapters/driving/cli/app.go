package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/ai"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/config/file"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/services"
	"github.com/custodia-labs/boltindex/internal/logger"
	"github.com/custodia-labs/boltindex/internal/steps"
)

// app holds the global flags and the services commands share.
// Services are built on first use so that commands such as version and
// settings never open storage or contact an AI provider.
type app struct {
	verbose   bool
	configDir string
	dataDir   string
	backend   string

	// configStore replaces the TOML config file when set.
	configStore driven.ConfigStore

	settingsSvc *services.SettingsService
	svc         *appServices
}

// appServices is the wired core for one process.
type appServices struct {
	settings  *domain.Settings
	storage   *storage
	ai        *ai.InitResult
	generator *services.Generator
	indexes   *services.IndexService
	engine    *services.Engine
	search    *services.SearchService
	ingest    *services.IngestService
}

func (a *app) settingsService() (*services.SettingsService, error) {
	if a.settingsSvc != nil {
		return a.settingsSvc, nil
	}
	store := a.configStore
	if store == nil {
		fs, err := file.NewConfigStore(a.configDir)
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		store = fs
	}
	a.settingsSvc = services.NewSettingsService(store)
	return a.settingsSvc, nil
}

// loadSettings reads settings and applies the global flag overrides.
func (a *app) loadSettings() (*domain.Settings, error) {
	svc, err := a.settingsService()
	if err != nil {
		return nil, err
	}
	settings, err := svc.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	if a.backend != "" {
		settings.Storage.Backend = domain.StorageBackend(a.backend)
	}
	switch {
	case a.dataDir != "":
		settings.Storage.DataDir = a.dataDir
	case settings.Storage.DataDir == "" && a.configDir != "":
		settings.Storage.DataDir = filepath.Join(a.configDir, "data")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// services wires storage, AI adapters and the core services once.
func (a *app) services(ctx context.Context) (*appServices, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	settings, err := a.loadSettings()
	if err != nil {
		return nil, err
	}

	st, err := openStorage(ctx, settings.Storage)
	if err != nil {
		return nil, err
	}
	logger.Debug("storage: %s", settings.Storage.Backend)

	aiResult := ai.Init(ctx, settings)
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}
	if aiResult.Oracle == nil {
		logger.Debug("no oracle configured, embeddings are structural-only")
	}

	promptDir := ""
	if a.configDir != "" {
		promptDir = filepath.Join(a.configDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		aiResult.Close()
		st.close() //nolint:errcheck
		return nil, err
	}

	generator, err := services.NewGenerator(settings.Generator, aiResult.Oracle, aiResult.Embedder,
		services.WithPromptStore(prompts))
	if err != nil {
		aiResult.Close()
		st.close() //nolint:errcheck
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	resources, err := services.NewResourceCoordinator(settings.Resources)
	if err != nil {
		aiResult.Close()
		st.close() //nolint:errcheck
		return nil, fmt.Errorf("creating resource pools: %w", err)
	}

	indexes := services.NewIndexService(vectorindex.Factory{}, st.blobs)

	registry := steps.NewRegistry()
	steps.RegisterDefaults(registry, steps.Deps{
		Contents:      st.contents,
		Chunker:       services.NewChunker(),
		Generator:     generator,
		Indexes:       indexes,
		Resources:     resources,
		Oracle:        aiResult.Oracle,
		ChunkStrategy: settings.Chunk,
		IndexConfig:   settings.Index,
		OracleTimeout: settings.Generator.OracleTimeout,
	})

	engine := services.NewEngine(settings.Engine, registry, st.checkpoints, resources)

	a.svc = &appServices{
		settings:  settings,
		storage:   st,
		ai:        aiResult,
		generator: generator,
		indexes:   indexes,
		engine:    engine,
		search:    services.NewSearchService(generator, indexes, st.contents),
		ingest:    services.NewIngestService(st.contents, engine, indexes),
	}
	return a.svc, nil
}

// close releases everything services opened.
func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	svc := a.svc
	a.svc = nil

	svc.ai.Close()
	return errors.Join(svc.indexes.Close(), svc.storage.close())
}
