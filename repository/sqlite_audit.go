package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chm413/mochi-link/models"
)

type sqliteAuditRepo struct {
	db *sql.DB
}

// NewSQLiteAuditRepo constructs the SQLite-backed AuditRepository.
func NewSQLiteAuditRepo(db *sql.DB) AuditRepository {
	return &sqliteAuditRepo{db: db}
}

func (r *sqliteAuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	opData, err := marshalJSONColumn(log.OperationData)
	if err != nil {
		return fmt.Errorf("failed to marshal operation data: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_id, server_id, operation, operation_data, result, error_message, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, timestamp`

	return r.db.QueryRowContext(ctx, query,
		log.UserID, log.ServerID, log.Operation, opData, log.Result, log.ErrorMessage, log.IPAddress, log.UserAgent,
	).Scan(&log.ID, &log.Timestamp)
}

func (r *sqliteAuditRepo) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.ServerID != nil {
		where = append(where, "server_id = ?")
		args = append(args, *filter.ServerID)
	}
	if filter.Operation != nil {
		where = append(where, "operation = ?")
		args = append(args, *filter.Operation)
	}
	if filter.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, *filter.Until)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := `
		SELECT id, user_id, server_id, operation, operation_data, result, error_message, ip_address, user_agent, timestamp
		FROM audit_logs WHERE ` + whereClause + ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		var opData string
		if err := rows.Scan(
			&log.ID, &log.UserID, &log.ServerID, &log.Operation, &opData,
			&log.Result, &log.ErrorMessage, &log.IPAddress, &log.UserAgent, &log.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		if err := unmarshalJSONColumn(opData, &log.OperationData); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal operation data: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, total, nil
}

func (r *sqliteAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep audit logs: %w", err)
	}
	return result.RowsAffected()
}
