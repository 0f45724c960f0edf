package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
)

type sqliteACLRepo struct {
	db *sql.DB
}

// NewSQLiteACLRepo constructs the SQLite-backed ACLRepository.
func NewSQLiteACLRepo(db *sql.DB) ACLRepository {
	return &sqliteACLRepo{db: db}
}

func (r *sqliteACLRepo) Upsert(ctx context.Context, acl *models.ServerACL) error {
	query := `
		INSERT INTO server_acl (user_id, server_id, role, permissions, granted_by, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, server_id) DO UPDATE SET
			role = excluded.role,
			permissions = excluded.permissions,
			granted_by = excluded.granted_by,
			expires_at = excluded.expires_at
		RETURNING granted_at`

	err := r.db.QueryRowContext(ctx, query,
		acl.UserID, acl.ServerID, acl.Role, uint64(acl.Permissions), acl.GrantedBy, acl.ExpiresAt,
	).Scan(&acl.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert server acl: %w", err)
	}
	return nil
}

func (r *sqliteACLRepo) Get(ctx context.Context, userID, serverID string) (*models.ServerACL, error) {
	query := `
		SELECT user_id, server_id, role, permissions, granted_by, granted_at, expires_at
		FROM server_acl WHERE user_id = ? AND server_id = ?`

	acl, err := scanACL(r.db.QueryRowContext(ctx, query, userID, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server acl: %w", err)
	}
	return acl, nil
}

func (r *sqliteACLRepo) ListByServer(ctx context.Context, serverID string) ([]models.ServerACL, error) {
	return r.list(ctx, "server_id = ?", serverID)
}

func (r *sqliteACLRepo) ListByUser(ctx context.Context, userID string) ([]models.ServerACL, error) {
	return r.list(ctx, "user_id = ?", userID)
}

func (r *sqliteACLRepo) list(ctx context.Context, where string, arg string) ([]models.ServerACL, error) {
	query := `
		SELECT user_id, server_id, role, permissions, granted_by, granted_at, expires_at
		FROM server_acl WHERE ` + where + ` ORDER BY granted_at DESC`

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list server acl: %w", err)
	}
	defer rows.Close()

	var acls []models.ServerACL
	for rows.Next() {
		acl, err := scanACL(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server acl row: %w", err)
		}
		acls = append(acls, *acl)
	}
	return acls, rows.Err()
}

func (r *sqliteACLRepo) Revoke(ctx context.Context, userID, serverID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM server_acl WHERE user_id = ? AND server_id = ?`, userID, serverID)
	if err != nil {
		return fmt.Errorf("failed to revoke server acl: %w", err)
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

func scanACL(row rowScanner) (*models.ServerACL, error) {
	var acl models.ServerACL
	var perms uint64
	if err := row.Scan(&acl.UserID, &acl.ServerID, &acl.Role, &perms, &acl.GrantedBy, &acl.GrantedAt, &acl.ExpiresAt); err != nil {
		return nil, err
	}
	acl.Permissions = models.Permission(perms)
	return &acl, nil
}
