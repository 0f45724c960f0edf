package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
)

type sqliteAPITokenRepo struct {
	db *sql.DB
}

// NewSQLiteAPITokenRepo constructs the SQLite-backed APITokenRepository.
func NewSQLiteAPITokenRepo(db *sql.DB) APITokenRepository {
	return &sqliteAPITokenRepo{db: db}
}

func (r *sqliteAPITokenRepo) Create(ctx context.Context, token *models.APIToken) error {
	ipWhitelist, err := marshalJSONColumn(token.IPWhitelist)
	if err != nil {
		return fmt.Errorf("failed to marshal ip whitelist: %w", err)
	}
	encCfg, err := marshalJSONColumn(token.EncryptionConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal encryption config: %w", err)
	}

	query := `
		INSERT INTO api_tokens (id, server_id, token, token_hash, ip_whitelist, encryption_config, expires_at)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		token.ServerID, token.Token, token.TokenHash, ipWhitelist, encCfg, token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *sqliteAPITokenRepo) GetByHash(ctx context.Context, hash string) (*models.APIToken, error) {
	query := `
		SELECT id, server_id, token, token_hash, ip_whitelist, encryption_config, created_at, expires_at, last_used
		FROM api_tokens WHERE token_hash = ?`

	tok, err := scanAPIToken(r.db.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api token by hash: %w", err)
	}
	return tok, nil
}

func (r *sqliteAPITokenRepo) GetByServerID(ctx context.Context, serverID string) ([]models.APIToken, error) {
	query := `
		SELECT id, server_id, token, token_hash, ip_whitelist, encryption_config, created_at, expires_at, last_used
		FROM api_tokens WHERE server_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.APIToken
	for rows.Next() {
		tok, err := scanAPIToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api token row: %w", err)
		}
		tokens = append(tokens, *tok)
	}
	return tokens, rows.Err()
}

func (r *sqliteAPITokenRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_tokens SET last_used = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to touch api token: %w", err)
	}
	return nil
}

func (r *sqliteAPITokenRepo) Revoke(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke api token: %w", err)
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

func scanAPIToken(row rowScanner) (*models.APIToken, error) {
	var tok models.APIToken
	var ipWhitelist, encCfg string
	if err := row.Scan(
		&tok.ID, &tok.ServerID, &tok.Token, &tok.TokenHash, &ipWhitelist, &encCfg,
		&tok.CreatedAt, &tok.ExpiresAt, &tok.LastUsed,
	); err != nil {
		return nil, err
	}
	if err := unmarshalJSONColumn(ipWhitelist, &tok.IPWhitelist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ip whitelist: %w", err)
	}
	if encCfg != "" && encCfg != "{}" {
		var cfg models.EncryptionConfig
		if err := unmarshalJSONColumn(encCfg, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal encryption config: %w", err)
		}
		tok.EncryptionConfig = &cfg
	}
	return &tok, nil
}
