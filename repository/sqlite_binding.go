package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
)

type sqliteBindingRepo struct {
	db *sql.DB
}

// NewSQLiteBindingRepo constructs the SQLite-backed GroupBindingRepository.
func NewSQLiteBindingRepo(db *sql.DB) GroupBindingRepository {
	return &sqliteBindingRepo{db: db}
}

func (r *sqliteBindingRepo) Create(ctx context.Context, binding *models.GroupBinding) error {
	chatCfg, err := marshalJSONColumn(binding.ChatConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal chat config: %w", err)
	}
	eventCfg, err := marshalJSONColumn(binding.EventConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal event config: %w", err)
	}

	query := `
		INSERT INTO server_bindings (id, group_id, server_id, binding_type, chat_config, event_config, created_by, status)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		binding.GroupID, binding.ServerID, binding.BindingType, chatCfg, eventCfg, binding.CreatedBy, binding.Status,
	).Scan(&binding.ID, &binding.CreatedAt)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return pkg.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create binding: %w", err)
	}
	return nil
}

func (r *sqliteBindingRepo) GetByID(ctx context.Context, id string) (*models.GroupBinding, error) {
	query := bindingSelect + `WHERE id = ?`
	b, err := scanBinding(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get binding by id: %w", err)
	}
	return b, nil
}

func (r *sqliteBindingRepo) ListByServer(ctx context.Context, serverID string) ([]models.GroupBinding, error) {
	return r.list(ctx, "server_id = ?", serverID)
}

func (r *sqliteBindingRepo) ListByGroup(ctx context.Context, groupID string) ([]models.GroupBinding, error) {
	return r.list(ctx, "group_id = ?", groupID)
}

func (r *sqliteBindingRepo) list(ctx context.Context, where, arg string) ([]models.GroupBinding, error) {
	query := bindingSelect + `WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	defer rows.Close()

	var bindings []models.GroupBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan binding row: %w", err)
		}
		bindings = append(bindings, *b)
	}
	return bindings, rows.Err()
}

func (r *sqliteBindingRepo) UpdateStatus(ctx context.Context, id string, status models.BindingStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE server_bindings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update binding status: %w", err)
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

func (r *sqliteBindingRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE server_bindings SET last_used_at = CURRENT_TIMESTAMP, route_count = route_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to touch binding: %w", err)
	}
	return nil
}

func (r *sqliteBindingRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM server_bindings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
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

const bindingSelect = `
	SELECT id, group_id, server_id, binding_type, chat_config, event_config, created_by, created_at, status, last_used_at, route_count
	FROM server_bindings `

func scanBinding(row rowScanner) (*models.GroupBinding, error) {
	var b models.GroupBinding
	var chatCfg, eventCfg string
	if err := row.Scan(
		&b.ID, &b.GroupID, &b.ServerID, &b.BindingType, &chatCfg, &eventCfg,
		&b.CreatedBy, &b.CreatedAt, &b.Status, &b.LastUsedAt, &b.RouteCount,
	); err != nil {
		return nil, err
	}
	if chatCfg != "" && chatCfg != "{}" {
		var cfg models.ChatBindingConfig
		if err := unmarshalJSONColumn(chatCfg, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat config: %w", err)
		}
		b.ChatConfig = &cfg
	}
	if eventCfg != "" && eventCfg != "{}" {
		var cfg models.EventBindingConfig
		if err := unmarshalJSONColumn(eventCfg, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event config: %w", err)
		}
		b.EventConfig = &cfg
	}
	return &b, nil
}
