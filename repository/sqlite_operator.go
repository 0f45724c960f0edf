package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chm413/mochi-link/database"
	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
)

type sqliteOperatorRepo struct {
	db database.TxQuerier
}

// NewSQLiteOperatorRepo constructs the SQLite-backed OperatorRepository.
func NewSQLiteOperatorRepo(db database.TxQuerier) OperatorRepository {
	return &sqliteOperatorRepo{db: db}
}

func (r *sqliteOperatorRepo) Create(ctx context.Context, operator *models.Operator) error {
	query := `
		INSERT INTO operators (id, username, display_name, password_hash, email, is_platform_admin)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		operator.Username, operator.DisplayName, operator.PasswordHash, operator.Email, operator.IsPlatformAdmin,
	).Scan(&operator.ID, &operator.CreatedAt)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

func (r *sqliteOperatorRepo) GetByID(ctx context.Context, id string) (*models.Operator, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *sqliteOperatorRepo) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	return r.getOne(ctx, "username = ?", username)
}

func (r *sqliteOperatorRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operators`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count operators: %w", err)
	}
	return count, nil
}

func (r *sqliteOperatorRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE operators SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteOperatorRepo) getOne(ctx context.Context, where, arg string) (*models.Operator, error) {
	query := `
		SELECT id, username, display_name, password_hash, email, is_platform_admin, created_at
		FROM operators WHERE ` + where

	var op models.Operator
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&op.ID, &op.Username, &op.DisplayName, &op.PasswordHash, &op.Email, &op.IsPlatformAdmin, &op.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return &op, nil
}
