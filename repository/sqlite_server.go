package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/pkg/crypto"
)

type sqliteServerRepo struct {
	db        *sql.DB
	cipherKey []byte // nil disables at-rest encryption of connection_config
}

// NewSQLiteServerRepo constructs the SQLite-backed ServerRepository.
// cipherKey, when non-nil, is used to encrypt connectionConfig at rest for
// "rcon"/"terminal" mode servers — the only modes whose connectionConfig
// carries a credential (plugin mode authenticates over the WebSocket
// connector token instead, so its config has nothing worth encrypting).
func NewSQLiteServerRepo(db *sql.DB, cipherKey []byte) ServerRepository {
	return &sqliteServerRepo{db: db, cipherKey: cipherKey}
}

func (r *sqliteServerRepo) Create(ctx context.Context, server *models.Server) error {
	connCfg, err := r.marshalConnectionConfig(server.ConnectionMode, server.ConnectionConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal connection config: %w", err)
	}
	tags, err := marshalJSONColumn(server.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	allowlist, err := marshalJSONColumn(server.CommandAllowlist)
	if err != nil {
		return fmt.Errorf("failed to marshal command allowlist: %w", err)
	}
	blocklist, err := marshalJSONColumn(server.CommandBlocklist)
	if err != nil {
		return fmt.Errorf("failed to marshal command blocklist: %w", err)
	}

	query := `
		INSERT INTO servers (
			id, display_name, core_type, core_name, core_version,
			connection_mode, connection_config, command_allowlist, command_blocklist, status, owner_id, tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		server.ID, server.DisplayName, server.CoreType, server.CoreName, server.CoreVersion,
		server.ConnectionMode, connCfg, allowlist, blocklist, server.Status, server.OwnerID, tags,
	).Scan(&server.CreatedAt, &server.UpdatedAt)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return pkg.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create server: %w", err)
	}

	return nil
}

func (r *sqliteServerRepo) GetByID(ctx context.Context, id string) (*models.Server, error) {
	query := `
		SELECT id, display_name, core_type, core_name, core_version,
		       connection_mode, connection_config, command_allowlist, command_blocklist, status, owner_id, tags,
		       created_at, updated_at, last_seen
		FROM servers WHERE id = ?`

	srv, err := r.scanServer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server by id: %w", err)
	}
	return srv, nil
}

func (r *sqliteServerRepo) List(ctx context.Context, filter models.ServerListFilter) ([]models.Server, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Owner != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *filter.Owner)
	}
	if filter.Tag != nil {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+*filter.Tag+"\"%")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM servers WHERE " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count servers: %w", err)
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := `
		SELECT id, display_name, core_type, core_name, core_version,
		       connection_mode, connection_config, command_allowlist, command_blocklist, status, owner_id, tags,
		       created_at, updated_at, last_seen
		FROM servers WHERE ` + whereClause + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []models.Server
	for rows.Next() {
		srv, err := r.scanServer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan server row: %w", err)
		}
		servers = append(servers, *srv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating server rows: %w", err)
	}

	return servers, total, nil
}

func (r *sqliteServerRepo) Update(ctx context.Context, server *models.Server) error {
	tags, err := marshalJSONColumn(server.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	allowlist, err := marshalJSONColumn(server.CommandAllowlist)
	if err != nil {
		return fmt.Errorf("failed to marshal command allowlist: %w", err)
	}
	blocklist, err := marshalJSONColumn(server.CommandBlocklist)
	if err != nil {
		return fmt.Errorf("failed to marshal command blocklist: %w", err)
	}

	query := `
		UPDATE servers SET display_name = ?, core_version = ?, tags = ?, status = ?,
		       command_allowlist = ?, command_blocklist = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query,
		server.DisplayName, server.CoreVersion, tags, server.Status, allowlist, blocklist, server.ID,
	).Scan(&server.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pkg.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) UpdateStatus(ctx context.Context, id string, status models.ServerStatus, lastSeen *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE servers SET status = ?, last_seen = COALESCE(?, last_seen), updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, lastSeen, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update server status: %w", err)
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

func (r *sqliteServerRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
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

// rowScanner abstracts *sql.Row and *sql.Rows so scanServer serves both
// GetByID's single-row path and List's multi-row loop.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqliteServerRepo) scanServer(row rowScanner) (*models.Server, error) {
	var srv models.Server
	var connCfg, allowlist, blocklist, tags string
	if err := row.Scan(
		&srv.ID, &srv.DisplayName, &srv.CoreType, &srv.CoreName, &srv.CoreVersion,
		&srv.ConnectionMode, &connCfg, &allowlist, &blocklist, &srv.Status, &srv.OwnerID, &tags,
		&srv.CreatedAt, &srv.UpdatedAt, &srv.LastSeen,
	); err != nil {
		return nil, err
	}
	plainCfg, err := r.decryptConnectionConfig(srv.ConnectionMode, connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt connection config: %w", err)
	}
	if err := unmarshalJSONColumn(plainCfg, &srv.ConnectionConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection config: %w", err)
	}
	if err := unmarshalJSONColumn(allowlist, &srv.CommandAllowlist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command allowlist: %w", err)
	}
	if err := unmarshalJSONColumn(blocklist, &srv.CommandBlocklist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command blocklist: %w", err)
	}
	if err := unmarshalJSONColumn(tags, &srv.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	return &srv, nil
}

// connectionConfigCarriesSecret reports whether mode's connectionConfig
// may hold a credential worth encrypting at rest. Plugin-mode servers
// authenticate over their WebSocket connector token; their config is just
// display metadata.
func connectionConfigCarriesSecret(mode models.ConnectionMode) bool {
	return mode == models.ConnectionModeRCON || mode == models.ConnectionModeTerminal
}

// marshalConnectionConfig serializes connectionConfig to JSON and, for
// rcon/terminal servers with a cipher key configured, encrypts it before
// it reaches the connection_config column.
func (r *sqliteServerRepo) marshalConnectionConfig(mode models.ConnectionMode, cfg map[string]any) (string, error) {
	plain, err := marshalJSONColumn(cfg)
	if err != nil {
		return "", err
	}
	if r.cipherKey == nil || !connectionConfigCarriesSecret(mode) {
		return plain, nil
	}
	return crypto.Encrypt(plain, r.cipherKey)
}

// decryptConnectionConfig reverses marshalConnectionConfig; modes that were
// never encrypted pass through unchanged.
func (r *sqliteServerRepo) decryptConnectionConfig(mode models.ConnectionMode, stored string) (string, error) {
	if r.cipherKey == nil || !connectionConfigCarriesSecret(mode) {
		return stored, nil
	}
	return crypto.Decrypt(stored, r.cipherKey)
}

// isUniqueConstraintErr reports whether err is a SQLite UNIQUE/PRIMARY KEY
// constraint violation, the modernc.org/sqlite equivalent of the teacher's
// mattn/go-sqlite3 sqlite3.ErrConstraintUnique check.
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
