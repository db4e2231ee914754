package cli

import (
	"context"
	"fmt"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/blobkv"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/memory"
	miniostore "github.com/custodia-labs/boltindex/internal/adapters/driven/storage/minio"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/boltindex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// storage bundles the stores of one backend.
type storage struct {
	blobs       driven.BlobStore
	checkpoints driven.CheckpointStore
	contents    driven.ContentStore
	close       func() error
}

func openStorage(ctx context.Context, cfg domain.StorageSettings) (*storage, error) {
	switch cfg.Backend {
	case domain.StorageMemory:
		return &storage{
			blobs:       memory.NewBlobStore(),
			checkpoints: memory.NewCheckpointStore(),
			contents:    memory.NewContentStore(),
			close:       func() error { return nil },
		}, nil

	case domain.StorageSQLite, "":
		st, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return &storage{
			blobs:       st.BlobStore(),
			checkpoints: st.CheckpointStore(),
			contents:    st.ContentStore(),
			close:       st.Close,
		}, nil

	case domain.StoragePostgres:
		st, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return &storage{
			blobs:       st.BlobStore(),
			checkpoints: st.CheckpointStore(),
			contents:    st.ContentStore(),
			close:       st.Close,
		}, nil

	case domain.StorageMinio:
		blobs, err := miniostore.NewBlobStore(ctx, miniostore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("opening minio store: %w", err)
		}
		return &storage{
			blobs:       blobs,
			checkpoints: blobkv.NewCheckpointStore(blobs),
			contents:    blobkv.NewContentStore(blobs),
			close:       func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("%w: storage backend %q", domain.ErrUnsupportedType, cfg.Backend)
	}
}
