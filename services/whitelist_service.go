package services

import (
	"context"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
	"github.com/chm413/mochi-link/ws"
)

// WhitelistService implements the whitelist half of C8: add/remove dispatch
// immediately to an online server and fall back to the pending ops queue
// when the server is offline; sync fetches the connector's live whitelist
// through the single-flight-coalesced request path since many operators
// may ask for it at once.
type WhitelistService interface {
	Add(ctx context.Context, operatorID, serverID, player string) (enqueued bool, err error)
	Remove(ctx context.Context, operatorID, serverID, player string) (enqueued bool, err error)
	Sync(ctx context.Context, serverID string) ([]string, error)
}

type whitelistService struct {
	hub     *ws.Hub
	pending PendingOpsEngine
	audit   auditRecorder
}

// NewWhitelistService constructs the WhitelistService.
func NewWhitelistService(hub *ws.Hub, pending PendingOpsEngine, auditRepo repository.AuditRepository) WhitelistService {
	return &whitelistService{hub: hub, pending: pending, audit: newAuditRecorder(auditRepo)}
}

func (s *whitelistService) Add(ctx context.Context, operatorID, serverID, player string) (bool, error) {
	return s.dispatchOrEnqueue(ctx, operatorID, serverID, "whitelist.add", player)
}

func (s *whitelistService) Remove(ctx context.Context, operatorID, serverID, player string) (bool, error) {
	return s.dispatchOrEnqueue(ctx, operatorID, serverID, "whitelist.remove", player)
}

func (s *whitelistService) dispatchOrEnqueue(ctx context.Context, operatorID, serverID, op, player string) (bool, error) {
	_, err := s.hub.SendRequest(ctx, serverID, op, map[string]string{"player": player}, 0)
	if err == pkg.ErrServerOffline {
		_, enqueueErr := s.pending.Enqueue(ctx, serverID, op, player, nil)
		s.audit.record(ctx, operatorID, serverID, op, map[string]any{"player": player, "enqueued": true}, enqueueErr)
		return true, enqueueErr
	}
	s.audit.record(ctx, operatorID, serverID, op, map[string]any{"player": player}, err)
	return false, err
}

func (s *whitelistService) Sync(ctx context.Context, serverID string) ([]string, error) {
	raw, err := s.hub.SendRequestSingleFlight(ctx, serverID, "whitelist.sync", nil, 0)
	if err != nil {
		return nil, err
	}
	var result struct {
		Players []string `json:"players"`
	}
	if err := unmarshalRaw(raw, &result); err != nil {
		return nil, err
	}
	return result.Players, nil
}
