package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// contentStore implements driven.ContentStore.
type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

// Put stores or replaces content. CreatedAt survives replacement.
func (s *contentStore) Put(ctx context.Context, c *domain.Content) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: content with an id is required", domain.ErrValidation)
	}
	if !c.Modality.IsValid() {
		return fmt.Errorf("%w: modality %q", domain.ErrUnsupportedType, c.Modality)
	}
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	data := c.Data
	if data == nil {
		data = []byte{}
	}

	now := time.Now()
	created, updated := c.CreatedAt, c.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO contents (id, modality, data, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			modality = excluded.modality,
			data = excluded.data,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, c.ID, string(c.Modality), data, string(metadata), created.UnixNano(), updated.UnixNano())
	if err != nil {
		return fmt.Errorf("saving content %s: %w", c.ID, err)
	}
	return nil
}

// Open returns the content with the given ID.
func (s *contentStore) Open(ctx context.Context, id string) (*domain.Content, error) {
	var (
		c                domain.Content
		modality, md     string
		created, updated int64
	)
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, modality, data, metadata, created_at, updated_at FROM contents WHERE id = ?
	`, id).Scan(&c.ID, &modality, &c.Data, &md, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading content %s: %w", id, err)
	}

	c.Modality = domain.Modality(modality)
	if md != "" && md != "null" {
		if err := json.Unmarshal([]byte(md), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata of %s: %w", id, err)
		}
	}
	c.CreatedAt = unixNano(created)
	c.UpdatedAt = unixNano(updated)
	return &c, nil
}

// Delete removes content.
func (s *contentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting content %s: %w", id, err)
	}
	return nil
}

// List returns every content ID in ascending order.
func (s *contentStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT id FROM contents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying contents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning content id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contents: %w", err)
	}
	return ids, nil
}
