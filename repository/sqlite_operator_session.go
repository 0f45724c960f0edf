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

type sqliteOperatorSessionRepo struct {
	db database.TxQuerier
}

// NewSQLiteOperatorSessionRepo constructs the SQLite-backed OperatorSessionRepository.
func NewSQLiteOperatorSessionRepo(db database.TxQuerier) OperatorSessionRepository {
	return &sqliteOperatorSessionRepo{db: db}
}

func (r *sqliteOperatorSessionRepo) Create(ctx context.Context, session *models.OperatorSession) error {
	query := `
		INSERT INTO operator_sessions (id, operator_id, refresh_token, expires_at)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, session.OperatorID, session.RefreshToken, session.ExpiresAt).
		Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create operator session: %w", err)
	}
	return nil
}

func (r *sqliteOperatorSessionRepo) GetByRefreshToken(ctx context.Context, token string) (*models.OperatorSession, error) {
	query := `
		SELECT id, operator_id, refresh_token, expires_at, created_at
		FROM operator_sessions WHERE refresh_token = ?`

	var s models.OperatorSession
	err := r.db.QueryRowContext(ctx, query, token).Scan(&s.ID, &s.OperatorID, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator session: %w", err)
	}
	return &s, nil
}

func (r *sqliteOperatorSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM operator_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operator session: %w", err)
	}
	return nil
}

func (r *sqliteOperatorSessionRepo) DeleteByOperatorID(ctx context.Context, operatorID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM operator_sessions WHERE operator_id = ?`, operatorID)
	if err != nil {
		return fmt.Errorf("failed to delete operator sessions: %w", err)
	}
	return nil
}

func (r *sqliteOperatorSessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM operator_sessions WHERE expires_at < CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to delete expired operator sessions: %w", err)
	}
	return nil
}
