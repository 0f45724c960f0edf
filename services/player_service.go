package services

import (
	"context"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
	"github.com/chm413/mochi-link/ws"
)

// PlayerService is the player half of C8: a live roster query dispatches
// to the connector; Observe folds a connector-reported sighting into the
// cross-server player cache via PlayerCacheEntry.MergeFrom (run
// server-side inside the repository, per its doc comment); Kick dispatches
// immediately and never enqueues — kicking an offline server's player is
// meaningless, so it fails with ErrServerOffline rather than queuing.
type PlayerService interface {
	ListOnline(ctx context.Context, serverID string) ([]string, error)
	Observe(ctx context.Context, observed models.PlayerCacheEntry) (*models.PlayerCacheEntry, error)
	Lookup(ctx context.Context, identifier string) (*models.PlayerCacheEntry, error)
	Kick(ctx context.Context, operatorID, serverID, player, reason string) error
}

type playerService struct {
	hub     *ws.Hub
	players repository.PlayerRepository
	audit   auditRecorder
}

// NewPlayerService constructs the PlayerService.
func NewPlayerService(hub *ws.Hub, players repository.PlayerRepository, auditRepo repository.AuditRepository) PlayerService {
	return &playerService{hub: hub, players: players, audit: newAuditRecorder(auditRepo)}
}

func (s *playerService) ListOnline(ctx context.Context, serverID string) ([]string, error) {
	raw, err := s.hub.SendRequest(ctx, serverID, "player.list", nil, 0)
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

func (s *playerService) Observe(ctx context.Context, observed models.PlayerCacheEntry) (*models.PlayerCacheEntry, error) {
	return s.players.Upsert(ctx, observed)
}

// Lookup tries uuid, then falls back to name. An xuid is not matched by
// either lookup, so a player cannot be found by xuid.
func (s *playerService) Lookup(ctx context.Context, identifier string) (*models.PlayerCacheEntry, error) {
	if entry, err := s.players.GetByUUID(ctx, identifier); err == nil {
		return entry, nil
	}
	return s.players.GetByName(ctx, identifier)
}

func (s *playerService) Kick(ctx context.Context, operatorID, serverID, player, reason string) error {
	_, err := s.hub.SendRequest(ctx, serverID, "player.kick", map[string]string{
		"player": player,
		"reason": reason,
	}, 0)
	s.audit.record(ctx, operatorID, serverID, "player.kick", map[string]any{"player": player, "reason": reason}, err)
	if err == pkg.ErrServerOffline {
		return pkg.ErrServerOffline
	}
	return err
}
