package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
)

type sqlitePlayerRepo struct {
	db *sql.DB
}

// NewSQLitePlayerRepo constructs the SQLite-backed PlayerRepository.
func NewSQLitePlayerRepo(db *sql.DB) PlayerRepository {
	return &sqlitePlayerRepo{db: db}
}

// Upsert looks up an existing row by uuid (preferred) or name, merges the
// observation into it via PlayerCacheEntry.MergeFrom, and writes the result
// back. A first sighting is inserted as-is with full confidence.
func (r *sqlitePlayerRepo) Upsert(ctx context.Context, observed models.PlayerCacheEntry) (*models.PlayerCacheEntry, error) {
	var existing *models.PlayerCacheEntry
	var err error
	if observed.UUID != nil {
		existing, err = r.GetByUUID(ctx, *observed.UUID)
	} else {
		existing, err = r.GetByName(ctx, observed.Name)
	}
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		if observed.IdentityConfidence == 0 {
			observed.IdentityConfidence = 1
		}
		if err := r.insert(ctx, &observed); err != nil {
			return nil, err
		}
		return &observed, nil
	}

	existing.MergeFrom(observed)
	if err := r.update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *sqlitePlayerRepo) insert(ctx context.Context, e *models.PlayerCacheEntry) error {
	markers, err := marshalJSONColumn(e.IdentityMarkers)
	if err != nil {
		return fmt.Errorf("failed to marshal identity markers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO player_cache (
			uuid, xuid, name, display_name, last_server_id, last_seen,
			identity_confidence, identity_markers, has_identity_conflict, is_premium, device_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UUID, e.XUID, e.Name, e.DisplayName, e.LastServerID, e.LastSeen,
		e.IdentityConfidence, markers, e.HasIdentityConflict, e.IsPremium, e.DeviceType,
	)
	if err != nil {
		return fmt.Errorf("failed to insert player cache entry: %w", err)
	}
	return nil
}

func (r *sqlitePlayerRepo) update(ctx context.Context, e *models.PlayerCacheEntry) error {
	markers, err := marshalJSONColumn(e.IdentityMarkers)
	if err != nil {
		return fmt.Errorf("failed to marshal identity markers: %w", err)
	}

	where, arg := "uuid = ?", any(e.UUID)
	if e.UUID == nil {
		where, arg = "name = ? AND uuid IS NULL", any(e.Name)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE player_cache SET
			xuid = ?, display_name = ?, last_server_id = ?, last_seen = ?,
			identity_confidence = ?, identity_markers = ?, has_identity_conflict = ?,
			is_premium = ?, device_type = ?
		WHERE `+where,
		e.XUID, e.DisplayName, e.LastServerID, e.LastSeen,
		e.IdentityConfidence, markers, e.HasIdentityConflict, e.IsPremium, e.DeviceType, arg,
	)
	if err != nil {
		return fmt.Errorf("failed to update player cache entry: %w", err)
	}
	return nil
}

func (r *sqlitePlayerRepo) GetByUUID(ctx context.Context, uuid string) (*models.PlayerCacheEntry, error) {
	e, err := scanPlayer(r.db.QueryRowContext(ctx, playerSelect+`WHERE uuid = ?`, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player by uuid: %w", err)
	}
	return e, nil
}

func (r *sqlitePlayerRepo) GetByName(ctx context.Context, name string) (*models.PlayerCacheEntry, error) {
	e, err := scanPlayer(r.db.QueryRowContext(ctx, playerSelect+`WHERE name = ? ORDER BY last_seen DESC LIMIT 1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player by name: %w", err)
	}
	return e, nil
}

func (r *sqlitePlayerRepo) ListByServer(ctx context.Context, serverID string) ([]models.PlayerCacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, playerSelect+`WHERE last_server_id = ? ORDER BY last_seen DESC`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players by server: %w", err)
	}
	defer rows.Close()

	var players []models.PlayerCacheEntry
	for rows.Next() {
		e, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, *e)
	}
	return players, rows.Err()
}

const playerSelect = `
	SELECT uuid, xuid, name, display_name, last_server_id, last_seen,
	       identity_confidence, identity_markers, has_identity_conflict, is_premium, device_type
	FROM player_cache `

func scanPlayer(row rowScanner) (*models.PlayerCacheEntry, error) {
	var e models.PlayerCacheEntry
	var markers string
	if err := row.Scan(
		&e.UUID, &e.XUID, &e.Name, &e.DisplayName, &e.LastServerID, &e.LastSeen,
		&e.IdentityConfidence, &markers, &e.HasIdentityConflict, &e.IsPremium, &e.DeviceType,
	); err != nil {
		return nil, err
	}
	if markers != "" && markers != "{}" {
		var m models.IdentityMarkers
		if err := unmarshalJSONColumn(markers, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal identity markers: %w", err)
		}
		e.IdentityMarkers = &m
	}
	return &e, nil
}
