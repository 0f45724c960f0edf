package services

import (
	"context"
	"fmt"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/pkg/cache"
	"github.com/chm413/mochi-link/repository"
	"github.com/chm413/mochi-link/ws"
)

const capabilityCacheTTL = 10 * time.Minute

// ServerManager is the Server Manager (C6): it owns the servers catalogue
// CRUD, the runtime status view backed by the live ws.Hub, and a TTL cache
// of each server's declared capabilities so callers don't need a live
// connection just to ask "does this server support command.execute".
type ServerManager interface {
	Register(ctx context.Context, req models.RegisterServerRequest, ownerID string) (*models.Server, error)
	Get(ctx context.Context, id string) (*models.Server, error)
	List(ctx context.Context, filter models.ServerListFilter) ([]models.Server, int, error)
	Update(ctx context.Context, id string, req models.UpdateServerRequest) (*models.Server, error)
	Delete(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (*models.ServerStatusView, error)
	Capabilities(serverID string) ([]string, bool)

	// HasCapability reports whether serverID's connector declared
	// capability, for failing fast before sending a doomed request.
	HasCapability(serverID, capability string) bool
}

type serverManager struct {
	repo repository.ServerRepository
	hub  *ws.Hub

	capCache *cache.TTLCache[string, []string]
}

// NewServerManager constructs the ServerManager. Its own Hub wiring is
// done by the caller passing it as hub's ConnectionObserver — see
// OnServerOnline/OnServerOffline below.
func NewServerManager(repo repository.ServerRepository, hub *ws.Hub) ServerManager {
	return &serverManager{
		repo:     repo,
		hub:      hub,
		capCache: cache.New[string, []string](capabilityCacheTTL, capabilityCacheTTL),
	}
}

func (m *serverManager) Register(ctx context.Context, req models.RegisterServerRequest, ownerID string) (*models.Server, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	server := &models.Server{
		ID:               req.ID,
		DisplayName:      req.DisplayName,
		CoreType:         req.CoreType,
		CoreName:         req.CoreName,
		CoreVersion:      req.CoreVersion,
		ConnectionMode:   req.ConnectionMode,
		ConnectionConfig: req.ConnectionConfig,
		Status:           models.ServerStatusOffline,
		OwnerID:          ownerID,
		Tags:             req.Tags,
	}
	if err := m.repo.Create(ctx, server); err != nil {
		return nil, err
	}
	return server, nil
}

func (m *serverManager) Get(ctx context.Context, id string) (*models.Server, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *serverManager) List(ctx context.Context, filter models.ServerListFilter) ([]models.Server, int, error) {
	return m.repo.List(ctx, filter)
}

func (m *serverManager) Update(ctx context.Context, id string, req models.UpdateServerRequest) (*models.Server, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	server, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		server.DisplayName = *req.DisplayName
	}
	if req.CoreVersion != nil {
		server.CoreVersion = *req.CoreVersion
	}
	if req.Tags != nil {
		server.Tags = *req.Tags
	}
	if req.Status != nil {
		server.Status = *req.Status
	}
	if req.CommandAllowlist != nil {
		server.CommandAllowlist = *req.CommandAllowlist
	}
	if req.CommandBlocklist != nil {
		server.CommandBlocklist = *req.CommandBlocklist
	}
	if err := m.repo.Update(ctx, server); err != nil {
		return nil, err
	}
	return server, nil
}

func (m *serverManager) Delete(ctx context.Context, id string) error {
	if c, ok := m.hub.Connection(id); ok {
		c.Close(1000, "server deleted")
	}
	m.capCache.Delete(id)
	return m.repo.Delete(ctx, id)
}

// Status composes the persisted record with the live view the Hub holds —
// the online status and capabilities reflect the current connection, while
// lastSeen comes from the servers table.
func (m *serverManager) Status(ctx context.Context, id string) (*models.ServerStatusView, error) {
	server, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &models.ServerStatusView{
		Status:       server.Status,
		LastSeen:     server.LastSeen,
		Capabilities: []string{},
	}

	if caps, ok := m.Capabilities(id); ok {
		view.Capabilities = caps
		view.Status = models.ServerStatusOnline
	}

	return view, nil
}

func (m *serverManager) Capabilities(serverID string) ([]string, bool) {
	if caps, ok := m.capCache.Get(serverID); ok {
		return caps, true
	}
	if c, ok := m.hub.Connection(serverID); ok {
		caps := c.Capabilities()
		m.capCache.Set(serverID, caps)
		return caps, true
	}
	return nil, false
}

func (m *serverManager) HasCapability(serverID, capability string) bool {
	caps, ok := m.Capabilities(serverID)
	if !ok {
		return false
	}
	for _, c := range caps {
		if c == capability {
			return true
		}
	}
	return false
}

// OnServerOnline implements ws.ConnectionObserver: the handshake completed,
// so persist the online transition and warm the capability cache.
func (m *serverManager) OnServerOnline(serverID string, info ws.HandshakeInfo) {
	m.capCache.Set(serverID, info.Capabilities)
	now := time.Now()
	_ = m.repo.UpdateStatus(context.Background(), serverID, models.ServerStatusOnline, &now)
}

// OnServerOffline implements ws.ConnectionObserver.
func (m *serverManager) OnServerOffline(serverID string, reason string) {
	m.capCache.Delete(serverID)
	now := time.Now()
	_ = m.repo.UpdateStatus(context.Background(), serverID, models.ServerStatusOffline, &now)
}
