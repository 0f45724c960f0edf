package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
)

// auditRecorder is a small shared helper the C8 services (command, player,
// whitelist) embed to
// append one audit row per mutation, grounded on the teacher's
// services/channel_service.go convention of logging the outcome of every
// write regardless of whether it succeeded.
type auditRecorder struct {
	repo repository.AuditRepository
}

func newAuditRecorder(repo repository.AuditRepository) auditRecorder {
	return auditRecorder{repo: repo}
}

func (a auditRecorder) record(ctx context.Context, userID, serverID, operation string, data map[string]any, err error) {
	result := classifyResult(err)
	var errMsg *string
	if err != nil {
		msg := err.Error()
		errMsg = &msg
	}

	log := &models.AuditLog{
		Operation:     operation,
		OperationData: data,
		Result:        result,
		ErrorMessage:  errMsg,
	}
	if userID != "" {
		log.UserID = &userID
	}
	if serverID != "" {
		log.ServerID = &serverID
	}

	if createErr := a.repo.Create(ctx, log); createErr != nil {
		slog.Error("failed to write audit log", "operation", operation, "error", createErr)
	}
}

// classifyResult maps a service-layer error onto the three-way audit
// outcome spec.md §3/§7 calls for: a rejection the caller provoked
// (bad input, missing permission, unknown target, conflicting state, rate
// limit, connector-reported timeout/protocol/offline/disconnect) audits as
// failure; anything else — an unrecognized or internal error — audits as
// error, since it signals a bug or infrastructure fault rather than a
// caller mistake.
func classifyResult(err error) models.AuditResult {
	if err == nil {
		return models.AuditSuccess
	}
	switch {
	case errors.Is(err, pkg.ErrBadRequest),
		errors.Is(err, pkg.ErrUnauthorized),
		errors.Is(err, pkg.ErrForbidden),
		errors.Is(err, pkg.ErrNotFound),
		errors.Is(err, pkg.ErrAlreadyExists),
		errors.Is(err, pkg.ErrConflict),
		errors.Is(err, pkg.ErrRateLimited),
		errors.Is(err, pkg.ErrTimeout),
		errors.Is(err, pkg.ErrProtocol),
		errors.Is(err, pkg.ErrServerOffline),
		errors.Is(err, pkg.ErrConnectionClosed):
		return models.AuditFailure
	default:
		return models.AuditError
	}
}
