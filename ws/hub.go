package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// TokenValidator is the minimal surface the Hub needs from connector
// credential storage. Kept as a small local interface — the same
// interface-segregation move the teacher's ws/handler.go documents for its
// own TokenValidator — so this package never imports services and no
// ws<->services import cycle can form.
type TokenValidator interface {
	ValidateToken(ctx context.Context, serverID, presentedToken, remoteIP string) (models.TokenValidationResult, error)
}

// ConnectionObserver is how the Hub tells the rest of the hub about
// lifecycle transitions without either side importing the other directly
// (services.ConnectionObserverChain implements it, fanning out to the C6
// server manager and the C7 pending ops engine, mirroring the teacher's OnXxx
// callback-setter pattern in ws/hub.go, but as one typed interface instead
// of a dozen individual function fields).
type ConnectionObserver interface {
	OnServerOnline(serverID string, info HandshakeInfo)
	OnServerOffline(serverID string, reason string)
}

// EventDispatcher receives connector-emitted events for fan-out to bound
// chat-bot subscriptions (C10).
type EventDispatcher interface {
	DispatchEvent(serverID, op string, data []byte)
}

// Hub is the Connection Hub (C4): the registry of live connector sockets,
// one per serverId, grounded on the teacher's Hub (ws/hub.go) — same
// mutex-guarded connection map, with registration and removal done as
// direct map writes under the lock rather than through channels — but keyed
// by serverId instead of fanned out per-user-multi-socket, since only one
// live connection per server is ever allowed.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	validator TokenValidator
	observer  ConnectionObserver
	dispatch  EventDispatcher

	droppedEvents map[string]uint64
	droppedMu     sync.Mutex

	handshakeWaiters   map[string]chan *protocol.Message
	handshakeWaitersMu sync.Mutex

	shuttingDown bool
}

// NewHub constructs a Hub. observer and dispatch may be nil until the
// composition root wires the rest of the services together; calls against
// a nil observer/dispatch are no-ops.
func NewHub(validator TokenValidator, observer ConnectionObserver, dispatch EventDispatcher) *Hub {
	return &Hub{
		connections:      make(map[string]*Connection),
		validator:        validator,
		observer:         observer,
		dispatch:         dispatch,
		droppedEvents:    make(map[string]uint64),
		handshakeWaiters: make(map[string]chan *protocol.Message),
	}
}

// SetObserver installs the Hub's ConnectionObserver after construction,
// for composition roots that need the Hub itself to build the observer
// (e.g. ServerManager takes the Hub as a constructor argument).
func (h *Hub) SetObserver(observer ConnectionObserver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observer = observer
}

// SetDispatch installs the Hub's EventDispatcher after construction, for
// the same reason SetObserver exists.
func (h *Hub) SetDispatch(dispatch EventDispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatch = dispatch
}

// Admit handshakes and registers a new connector socket for serverID,
// replacing any existing connection for the same serverId (close code
// 1013, "replaced by new connection") — a reconnecting connector always
// wins over its stale predecessor. The caller (handler.go) has already
// verified the HTTP-level token check; Admit owns only the U-WBP handshake
// and registration.
func (h *Hub) Admit(ctx context.Context, conn *websocket.Conn, serverID, remoteAddr string) (*Connection, error) {
	return h.admitAuthenticated(ctx, conn, serverID, remoteAddr)
}

// AdmitChallenge is the optional challenge-response compatibility path
// (SecurityConfig.ChallengeResponseAuth): handler.go upgrades a socket that
// presented no serverId/token at all, and this runs the auth exchange over
// the socket itself instead of over the HTTP request — a system.auth.challenge
// frame goes out, the connector has authDeadline to reply with a
// system.auth.response carrying {serverId, token}, and the credentials are
// validated exactly as the URL/header path validates them. A connector
// that never replies in time, or fails validation, is disconnected with
// close code 1002 (scenario B, spec.md §4.4/§7) — no entry is ever added
// to the registry for an unauthenticated socket.
func (h *Hub) AdmitChallenge(ctx context.Context, conn *websocket.Conn, remoteAddr string) (*Connection, error) {
	h.mu.RLock()
	shuttingDown := h.shuttingDown
	h.mu.RUnlock()
	if shuttingDown {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1001, "hub shutting down"))
		conn.Close()
		return nil, pkg.ErrServerOffline
	}

	challenge, err := protocol.NewSystem(protocol.OpAuthChallenge, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	raw, err := protocol.Encode(challenge)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(authDeadline))
	_, respRaw, err := conn.ReadMessage()
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1002, "auth challenge timed out"))
		conn.Close()
		return nil, pkg.ErrTimeout
	}
	conn.SetReadDeadline(time.Time{})

	resp, err := protocol.Parse(respRaw)
	if err != nil || resp.Type != protocol.TypeSystem || resp.Op != protocol.OpAuthResponse {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1002, "expected system.auth.response"))
		conn.Close()
		return nil, pkg.ErrProtocol
	}

	var creds struct {
		ServerID string `json:"serverId"`
		Token    string `json:"token"`
	}
	if err := protocol.UnmarshalData(resp, &creds); err != nil || creds.ServerID == "" || creds.Token == "" {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1002, "malformed auth response"))
		conn.Close()
		return nil, pkg.ErrProtocol
	}

	result, err := h.validator.ValidateToken(ctx, creds.ServerID, creds.Token, remoteAddr)
	if err != nil || result != models.TokenValid {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1002, "authentication failed"))
		conn.Close()
		return nil, pkg.ErrUnauthorized
	}

	return h.admitAuthenticated(ctx, conn, creds.ServerID, remoteAddr)
}

// admitAuthenticated registers a connection whose credentials have already
// been validated — by handler.go's HTTP-level check before the upgrade, or
// by AdmitChallenge's in-band exchange after it — and runs the U-WBP
// handshake.
func (h *Hub) admitAuthenticated(ctx context.Context, conn *websocket.Conn, serverID, remoteAddr string) (*Connection, error) {
	h.mu.Lock()
	if h.shuttingDown {
		h.mu.Unlock()
		return nil, pkg.ErrServerOffline
	}
	old, existed := h.connections[serverID]
	c := newConnection(h, conn, serverID, remoteAddr)
	h.connections[serverID] = c
	h.mu.Unlock()

	if existed {
		old.closeWithCode(1013, "replaced by new connection")
	}

	go c.writePump()
	go c.readPump()
	go c.heartbeatLoop()

	if err := h.runHandshake(ctx, c); err != nil {
		h.unregister(c, "handshake failed")
		return nil, err
	}

	return c, nil
}

func (h *Hub) runHandshake(ctx context.Context, c *Connection) error {
	msg, err := protocol.NewSystem(protocol.OpHandshake, map[string]string{
		"serverId": c.serverID,
	})
	if err != nil {
		return err
	}
	msg.ID = uuid.NewString()

	handshakeCtx, cancel := context.WithTimeout(ctx, authDeadline)
	defer cancel()

	replyC := make(chan *protocol.Message, 1)
	h.registerHandshakeWaiter(c.serverID, replyC)
	defer h.clearHandshakeWaiter(c.serverID)

	if err := c.writeFrame(msg); err != nil {
		return err
	}

	select {
	case reply := <-replyC:
		var info HandshakeInfo
		if err := protocol.UnmarshalData(reply, &info); err != nil {
			return err
		}
		c.setCapabilities(info.Capabilities)
		if observer := h.currentObserver(); observer != nil {
			observer.OnServerOnline(c.serverID, info)
		}
		return nil
	case <-handshakeCtx.Done():
		return pkg.ErrTimeout
	}
}

func (h *Hub) registerHandshakeWaiter(serverID string, ch chan *protocol.Message) {
	h.handshakeWaitersMu.Lock()
	h.handshakeWaiters[serverID] = ch
	h.handshakeWaitersMu.Unlock()
}

func (h *Hub) clearHandshakeWaiter(serverID string) {
	h.handshakeWaitersMu.Lock()
	delete(h.handshakeWaiters, serverID)
	h.handshakeWaitersMu.Unlock()
}

// handleHandshakeReply is invoked from Connection.handleSystem when the
// connector's system.handshake reply arrives.
func (h *Hub) handleHandshakeReply(c *Connection, msg *protocol.Message) {
	h.handshakeWaitersMu.Lock()
	ch, ok := h.handshakeWaiters[c.serverID]
	h.handshakeWaitersMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// unregister removes c from the registry if it is still the current
// connection for its serverId (a replaced connection must not clobber the
// entry its replacement installed) and notifies the observer.
func (h *Hub) unregister(c *Connection, reason string) {
	h.mu.Lock()
	current, ok := h.connections[c.serverID]
	if ok && current == c {
		delete(h.connections, c.serverID)
	}
	h.mu.Unlock()

	c.closeWithCode(1000, reason)

	if ok && current == c {
		if observer := h.currentObserver(); observer != nil {
			observer.OnServerOffline(c.serverID, reason)
		}
	}
}

func (h *Hub) currentObserver() ConnectionObserver {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.observer
}

func (h *Hub) currentDispatch() EventDispatcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dispatch
}

// onHeartbeatLost is called by Connection.heartbeatLoop after two
// consecutive missed pongs.
func (h *Hub) onHeartbeatLost(serverID string) {
	h.mu.Lock()
	c, ok := h.connections[serverID]
	h.mu.Unlock()
	if ok {
		h.unregister(c, "heartbeat timeout")
	}
}

func (h *Hub) dispatchEvent(serverID, op string, data []byte) {
	if dispatch := h.currentDispatch(); dispatch != nil {
		dispatch.DispatchEvent(serverID, op, data)
	}
}

func (h *Hub) incrementDroppedEvents(serverID string) {
	h.droppedMu.Lock()
	h.droppedEvents[serverID]++
	h.droppedMu.Unlock()
}

// DroppedEvents returns the number of events dropped for serverID due to
// backpressure.
func (h *Hub) DroppedEvents(serverID string) uint64 {
	h.droppedMu.Lock()
	defer h.droppedMu.Unlock()
	return h.droppedEvents[serverID]
}

// Connection returns the live connection for serverID, if any.
func (h *Hub) Connection(serverID string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.connections[serverID]
	return c, ok
}

// IsOnline reports whether serverID currently has a live, handshaken
// connection.
func (h *Hub) IsOnline(serverID string) bool {
	_, ok := h.Connection(serverID)
	return ok
}

// OnlineServerIDs returns every serverId with a live connection, for the
// health endpoint's connection count.
func (h *Hub) OnlineServerIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	return ids
}

// SendRequest looks up serverID's connection and issues a correlated
// request through it, surfacing ErrServerOffline when there is none —
// callers (the pending ops engine, command dispatch) use this to decide
// between immediate delivery and enqueueing.
func (h *Hub) SendRequest(ctx context.Context, serverID, op string, data any, timeout time.Duration) ([]byte, error) {
	c, ok := h.Connection(serverID)
	if !ok {
		return nil, pkg.ErrServerOffline
	}
	return c.correlator.SendRequest(ctx, c, op, data, timeout)
}

// SendRequestSingleFlight is SendRequest with coalescing of concurrent
// identical in-flight calls, for ops like whitelist.sync.
func (h *Hub) SendRequestSingleFlight(ctx context.Context, serverID, op string, data any, timeout time.Duration) ([]byte, error) {
	c, ok := h.Connection(serverID)
	if !ok {
		return nil, pkg.ErrServerOffline
	}
	key := serverID + ":" + op
	return c.correlator.SendRequestSingleFlight(ctx, c, key, op, data, timeout)
}

// PublishEvent sends a fire-and-forget event frame to serverID's
// connection, if one exists. An offline target gets ErrServerOffline and
// nothing is sent — events are not queued, unlike pending operations.
func (h *Hub) PublishEvent(serverID, op string, data any) error {
	c, ok := h.Connection(serverID)
	if !ok {
		return pkg.ErrServerOffline
	}
	msg, err := protocol.NewEvent(op, data)
	if err != nil {
		return err
	}
	return c.writeFrame(msg)
}

// Shutdown gracefully disconnects every live connection: each connector
// receives system.disconnect, outstanding requests fail with
// connection-closed, and no further admissions are accepted.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.shuttingDown = true
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		// Written directly rather than queued, so the disconnect frame reaches
		// the socket before closeWithCode's close frame.
		msg, err := protocol.NewSystem(protocol.OpDisconnect, map[string]string{"reason": "hub shutting down"})
		if err == nil {
			if raw, encErr := protocol.Encode(msg); encErr == nil {
				c.writeMu.Lock()
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.TextMessage, raw)
				c.writeMu.Unlock()
			}
		}
		c.closeWithCode(1001, "hub shutting down")
	}

	slog.InfoContext(ctx, "ws hub shutdown complete", "connectionsClosed", len(conns))
}
