package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

type checkpointStore struct {
	pool *pgxpool.Pool
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

const checkpointColumns = `id, execution_id, sequence, format_version, state, created_at`

// Save appends a checkpoint. A conflicting ID or sequence is ErrAlreadyExists.
func (s *checkpointStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.ID == "" || cp.ExecutionID == "" {
		return fmt.Errorf("%w: checkpoint id and execution id are required", domain.ErrValidation)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO boltindex_checkpoints (`+checkpointColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, cp.ID, cp.ExecutionID, cp.Sequence, cp.FormatVersion, cp.State, cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", cp.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: checkpoint %s", domain.ErrAlreadyExists, cp.ID)
	}
	return nil
}

func (s *checkpointStore) Get(ctx context.Context, id string) (*domain.Checkpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+checkpointColumns+` FROM boltindex_checkpoints WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoint %s: %w", id, err)
	}
	return collectOne(rows)
}

func (s *checkpointStore) Latest(ctx context.Context, executionID string) (*domain.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+checkpointColumns+` FROM boltindex_checkpoints
		WHERE execution_id = $1 ORDER BY sequence DESC LIMIT 1
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("querying latest checkpoint: %w", err)
	}
	return collectOne(rows)
}

func (s *checkpointStore) List(ctx context.Context, executionID string) ([]domain.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+checkpointColumns+` FROM boltindex_checkpoints
		WHERE execution_id = $1 ORDER BY sequence
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoints: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("scanning checkpoints: %w", err)
	}
	if out == nil {
		out = []domain.Checkpoint{}
	}
	return out, nil
}

func (s *checkpointStore) Executions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT execution_id FROM boltindex_checkpoints ORDER BY execution_id COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	return collectStrings(rows)
}

func (s *checkpointStore) DeleteExecution(ctx context.Context, executionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM boltindex_checkpoints WHERE execution_id = $1`, executionID)
	if err != nil {
		return fmt.Errorf("deleting checkpoints of %s: %w", executionID, err)
	}
	return nil
}

func scanCheckpoint(row pgx.CollectableRow) (domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := row.Scan(&cp.ID, &cp.ExecutionID, &cp.Sequence, &cp.FormatVersion, &cp.State, &cp.CreatedAt)
	cp.CreatedAt = cp.CreatedAt.UTC()
	return cp, err
}

func collectOne(rows pgx.Rows) (*domain.Checkpoint, error) {
	cp, err := pgx.CollectExactlyOneRow(rows, scanCheckpoint)
	if err != nil {
		return nil, notFound(err)
	}
	return &cp, nil
}
