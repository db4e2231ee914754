package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

type contentStore struct {
	pool *pgxpool.Pool
}

var _ driven.ContentStore = (*contentStore)(nil)

func (s *contentStore) Put(ctx context.Context, c *domain.Content) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: content with an id is required", domain.ErrValidation)
	}
	if !c.Modality.IsValid() {
		return fmt.Errorf("%w: modality %q", domain.ErrUnsupportedType, c.Modality)
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	md, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	data := c.Data
	if data == nil {
		data = []byte{}
	}

	now := time.Now().UTC()
	created, updated := c.CreatedAt, c.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO boltindex_contents (id, modality, data, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			modality = EXCLUDED.modality,
			data = EXCLUDED.data,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`, c.ID, string(c.Modality), data, string(md), created, updated)
	if err != nil {
		return fmt.Errorf("saving content %s: %w", c.ID, err)
	}
	return nil
}

func (s *contentStore) Open(ctx context.Context, id string) (*domain.Content, error) {
	var (
		c            domain.Content
		modality, md string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, modality, data, metadata::text, created_at, updated_at
		FROM boltindex_contents WHERE id = $1
	`, id).Scan(&c.ID, &modality, &c.Data, &md, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	c.Modality = domain.Modality(modality)
	if err := json.Unmarshal([]byte(md), &c.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata of %s: %w", id, err)
	}
	if len(c.Metadata) == 0 {
		c.Metadata = nil
	}
	return &c, nil
}

func (s *contentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM boltindex_contents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting content %s: %w", id, err)
	}
	return nil
}

func (s *contentStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM boltindex_contents ORDER BY id COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("querying contents: %w", err)
	}
	return collectStrings(rows)
}
