package services

import (
	"context"

	"github.com/chm413/mochi-link/ws"
)

// ConnectionObserverChain fans a ws.ConnectionObserver event out to several
// observers in order — the hub holds exactly one observer, but a
// handshake's completion needs to update both the persisted Server record
// (ServerManager) and trigger the pending-ops replay (PendingOpsEngine),
// so main.go composes the two through this chain rather than the Hub
// taking a list.
type ConnectionObserverChain struct {
	ServerManager ws.ConnectionObserver
	PendingOps    PendingOpsEngine
}

// OnServerOnline implements ws.ConnectionObserver.
func (c *ConnectionObserverChain) OnServerOnline(serverID string, info ws.HandshakeInfo) {
	c.ServerManager.OnServerOnline(serverID, info)
	go c.PendingOps.DrainOnReconnect(context.Background(), serverID)
}

// OnServerOffline implements ws.ConnectionObserver.
func (c *ConnectionObserverChain) OnServerOffline(serverID, reason string) {
	c.ServerManager.OnServerOffline(serverID, reason)
}
