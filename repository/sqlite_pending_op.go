package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chm413/mochi-link/database"
	"github.com/chm413/mochi-link/models"
)

type sqlitePendingOpRepo struct {
	db *sql.DB
}

// NewSQLitePendingOpRepo constructs the SQLite-backed PendingOperationRepository.
func NewSQLitePendingOpRepo(db *sql.DB) PendingOperationRepository {
	return &sqlitePendingOpRepo{db: db}
}

func (r *sqlitePendingOpRepo) Enqueue(ctx context.Context, op *models.PendingOperation) error {
	params, err := marshalJSONColumn(op.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal pending op parameters: %w", err)
	}

	query := `
		INSERT INTO pending_operations (id, server_id, operation_type, target, parameters, status, scheduled_at)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		op.ServerID, op.OperationType, op.Target, params, op.Status, op.ScheduledAt,
	).Scan(&op.ID, &op.CreatedAt)
}

func (r *sqlitePendingOpRepo) ListByServer(ctx context.Context, serverID string) ([]models.PendingOperation, error) {
	query := `
		SELECT id, server_id, operation_type, target, parameters, status, created_at, scheduled_at, executed_at
		FROM pending_operations WHERE server_id = ? ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []models.PendingOperation
	for rows.Next() {
		op, err := scanPendingOp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending operation row: %w", err)
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

// Replace swaps serverID's whole pending queue for ops under a single
// transaction, grounded on the teacher's UpdatePositions all-or-nothing
// bulk-write idiom (database.WithTx): either the entire optimized queue
// lands, or none of it does.
func (r *sqlitePendingOpRepo) Replace(ctx context.Context, serverID string, ops []models.PendingOperation) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_operations WHERE server_id = ?`, serverID); err != nil {
			return fmt.Errorf("failed to clear pending operations: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pending_operations (id, server_id, operation_type, target, parameters, status, created_at, scheduled_at, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, op := range ops {
			params, err := marshalJSONColumn(op.Parameters)
			if err != nil {
				return fmt.Errorf("failed to marshal pending op parameters: %w", err)
			}
			id := op.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d", serverID, op.CreatedAt.UnixNano())
			}
			if _, err := stmt.ExecContext(ctx,
				id, op.ServerID, op.OperationType, op.Target, params, op.Status, op.CreatedAt, op.ScheduledAt, op.ExecutedAt,
			); err != nil {
				return fmt.Errorf("failed to insert optimized pending operation: %w", err)
			}
		}
		return nil
	})
}

func (r *sqlitePendingOpRepo) MarkStatus(ctx context.Context, id string, status models.PendingOpStatus, executedAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pending_operations SET status = ?, executed_at = COALESCE(?, executed_at) WHERE id = ?`,
		status, executedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark pending operation status: %w", err)
	}
	return nil
}

func (r *sqlitePendingOpRepo) DeleteByServer(ctx context.Context, serverID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE server_id = ?`, serverID)
	if err != nil {
		return fmt.Errorf("failed to delete pending operations: %w", err)
	}
	return nil
}

func scanPendingOp(row rowScanner) (*models.PendingOperation, error) {
	var op models.PendingOperation
	var params string
	if err := row.Scan(
		&op.ID, &op.ServerID, &op.OperationType, &op.Target, &params,
		&op.Status, &op.CreatedAt, &op.ScheduledAt, &op.ExecutedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalJSONColumn(params, &op.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending op parameters: %w", err)
	}
	return &op, nil
}
