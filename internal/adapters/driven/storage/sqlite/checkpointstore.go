package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// checkpointStore implements driven.CheckpointStore.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

const checkpointColumns = `id, execution_id, sequence, format_version, state, created_at`

// Save appends a checkpoint. Reusing an ID or a sequence is an error.
func (s *checkpointStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.ID == "" || cp.ExecutionID == "" {
		return fmt.Errorf("%w: checkpoint id and execution id are required", domain.ErrValidation)
	}
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO checkpoints (`+checkpointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, cp.ID, cp.ExecutionID, cp.Sequence, cp.FormatVersion, cp.State, cp.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", cp.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", cp.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: checkpoint %s", domain.ErrAlreadyExists, cp.ID)
	}
	return nil
}

// Get retrieves a checkpoint by ID.
func (s *checkpointStore) Get(ctx context.Context, id string) (*domain.Checkpoint, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM checkpoints WHERE id = ?`, id)
	return scanCheckpoint(row)
}

// Latest returns the highest-sequence checkpoint of an execution.
func (s *checkpointStore) Latest(ctx context.Context, executionID string) (*domain.Checkpoint, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+checkpointColumns+` FROM checkpoints
		WHERE execution_id = ? ORDER BY sequence DESC LIMIT 1
	`, executionID)
	return scanCheckpoint(row)
}

// List returns an execution's checkpoints in ascending sequence order.
func (s *checkpointStore) List(ctx context.Context, executionID string) ([]domain.Checkpoint, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+checkpointColumns+` FROM checkpoints
		WHERE execution_id = ? ORDER BY sequence
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoints: %w", err)
	}
	defer rows.Close()

	out := []domain.Checkpoint{}
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating checkpoints: %w", err)
	}
	return out, nil
}

// Executions returns the IDs of executions with checkpoints, sorted.
func (s *checkpointStore) Executions(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT DISTINCT execution_id FROM checkpoints ORDER BY execution_id`)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning execution id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return ids, nil
}

// DeleteExecution removes every checkpoint of an execution.
func (s *checkpointStore) DeleteExecution(ctx context.Context, executionID string) error {
	_, err := s.store.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE execution_id = ?`, executionID)
	if err != nil {
		return fmt.Errorf("deleting checkpoints of %s: %w", executionID, err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*domain.Checkpoint, error) {
	var (
		cp      domain.Checkpoint
		created int64
	)
	err := row.Scan(&cp.ID, &cp.ExecutionID, &cp.Sequence, &cp.FormatVersion, &cp.State, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}
	cp.CreatedAt = unixNano(created)
	return &cp, nil
}
