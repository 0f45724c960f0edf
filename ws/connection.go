package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/protocol"
	"github.com/gorilla/websocket"
)

// Connection-level tuning, grounded on ws/client.go's constant block
// (writeWait/pongWait/maxMessageSize/sendBufferSize) but re-derived from
// the connector protocol's handshake/heartbeat/backpressure numbers instead
// of the teacher's chat-app values.
const (
	writeWait            = 10 * time.Second
	authDeadline         = 10 * time.Second
	heartbeatInterval    = 30 * time.Second
	heartbeatPongTimeout = 5 * time.Second
	sendQueueCapacity    = 1024
)

// HandshakeInfo is what a connector declares about itself in its reply to
// system.handshake.
type HandshakeInfo struct {
	CoreType     string   `json:"coreType"`
	CoreName     string   `json:"coreName"`
	CoreVersion  string   `json:"coreVersion"`
	Capabilities []string `json:"capabilities"`
}

// Connection is one authenticated connector socket's per-connection state,
// grounded on the teacher's Client (ws/client.go) but keyed by serverId
// instead of userId and carrying a Correlator instead of a bare send
// channel.
type Connection struct {
	hub        *Hub
	conn       *websocket.Conn
	serverID   string
	remoteAddr string

	correlator *Correlator

	send      chan []byte
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	capMu        sync.RWMutex
	capabilities map[string]bool

	missedPongs atomic.Int32
	lastSeen    atomic.Int64 // unix millis of last inbound frame of any kind
}

func newConnection(hub *Hub, conn *websocket.Conn, serverID, remoteAddr string) *Connection {
	c := &Connection{
		hub:          hub,
		conn:         conn,
		serverID:     serverID,
		remoteAddr:   remoteAddr,
		correlator:   NewCorrelator(),
		send:         make(chan []byte, sendQueueCapacity),
		capabilities: make(map[string]bool),
	}
	c.lastSeen.Store(time.Now().UnixMilli())
	return c
}

// ServerID returns the serverId this connection authenticated as.
func (c *Connection) ServerID() string { return c.serverID }

// RemoteAddr returns the admission-time remote address, used for IP
// whitelist re-checks and audit logging.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// Capabilities returns the capability set declared at handshake.
func (c *Connection) Capabilities() []string {
	c.capMu.RLock()
	defer c.capMu.RUnlock()
	caps := make([]string, 0, len(c.capabilities))
	for k := range c.capabilities {
		caps = append(caps, k)
	}
	return caps
}

func (c *Connection) setCapabilities(caps []string) {
	c.capMu.Lock()
	defer c.capMu.Unlock()
	c.capabilities = make(map[string]bool, len(caps))
	for _, cap := range caps {
		c.capabilities[cap] = true
	}
}

// writeFrame implements frameWriter for the Correlator, and is also the
// single path ReadPump/heartbeat/hub use to send any frame. Backpressure
// policy: event frames drop-oldest on a full queue; request/response/system
// frames never drop — a full queue for them closes the connection with 1011.
func (c *Connection) writeFrame(m *protocol.Message) error {
	if c.closed.Load() {
		return pkg.ErrConnectionClosed
	}

	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
	}

	if m.Type == protocol.TypeEvent {
		// Drop the oldest queued event to make room, then retry once.
		select {
		case <-c.send:
			c.hub.incrementDroppedEvents(c.serverID)
		default:
		}
		select {
		case c.send <- data:
			return nil
		default:
			c.hub.incrementDroppedEvents(c.serverID)
			return nil
		}
	}

	c.closeWithCode(websocket.CloseInternalServerErr, "send queue overflow")
	return pkg.ErrConnectionClosed
}

// readPump reads and dispatches inbound frames until the socket errors or
// closes; it always runs as its own goroutine and never blocks on handler
// work — handler work is offloaded so the reader never stalls.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c, "read loop ended")
	}()

	c.conn.SetReadLimit(protocol.MaxFrameBytes)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.lastSeen.Store(time.Now().UnixMilli())

		msg, err := protocol.Parse(raw)
		if err != nil {
			c.writeFrame(protocol.NewError("", "PROTOCOL_ERROR", err.Error()))
			continue
		}

		go c.dispatch(msg)
	}
}

// dispatch routes one parsed frame by its envelope type. Each call runs in
// its own goroutine (spawned by readPump) so a slow handler — a store
// query, a subscription fan-out — cannot stall the reader.
func (c *Connection) dispatch(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeResponse:
		c.correlator.Resolve(msg.ID, msg.Data)

	case protocol.TypeError:
		if msg.ID != "" && msg.Error != nil {
			c.correlator.RejectRemote(msg.ID, msg.Error.Code, msg.Error.Message)
		}

	case protocol.TypeEvent:
		c.hub.dispatchEvent(c.serverID, msg.Op, msg.Data)

	case protocol.TypeSystem:
		c.handleSystem(msg)

	case protocol.TypeRequest:
		// Connector-initiated requests aren't supported beyond system ops;
		// reply unsupported rather than silently drop.
		c.writeFrame(errorResponseFor(msg, "UNSUPPORTED", "hub does not accept connector-initiated requests"))
	}
}

func (c *Connection) handleSystem(msg *protocol.Message) {
	switch msg.Op {
	case protocol.OpPong:
		c.missedPongs.Store(0)
	case protocol.OpDisconnect:
		c.closeWithCode(websocket.CloseNormalClosure, "connector requested disconnect")
	case protocol.OpHandshake:
		c.hub.handleHandshakeReply(c, msg)
	default:
		slog.Debug("unhandled system op", "serverId", c.serverID, "op", msg.Op)
	}
}

// writePump drains the send channel to the socket; the only goroutine
// allowed to call conn.WriteMessage, per gorilla/websocket's single-writer
// requirement (same constraint the teacher's ws/client.go documents).
func (c *Connection) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteMessage(websocket.TextMessage, data)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
	// Channel closed: send a close frame and stop.
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, nil)
	c.writeMu.Unlock()
}

// heartbeatLoop enforces the heartbeat contract: a ping every 30s, a 5s
// grace period for the pong, two consecutive misses close 1011.
func (c *Connection) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		if c.closed.Load() {
			return
		}
		// missedPongs counts pings sent since the last pong; two unanswered
		// in a row is two consecutive misses.
		if c.missedPongs.Load() >= 2 {
			c.closeWithCode(websocket.CloseInternalServerErr, "heartbeat timeout")
			c.hub.onHeartbeatLost(c.serverID)
			return
		}
		ping, err := protocol.NewSystem(protocol.OpPing, nil)
		if err != nil {
			continue
		}
		c.missedPongs.Add(1)
		c.writeFrame(ping)

		// Give the connector heartbeatPongTimeout to reply before the next
		// tick's miss-count check runs; the ticker interval already exceeds
		// this window, so no extra timer is needed here.
		_ = heartbeatPongTimeout
	}
}

// Close tears the connection down with the given WebSocket close code and
// reason, for use by callers outside this package (e.g. the server
// manager, when an operator deletes a server out from under a live
// connector).
func (c *Connection) Close(code int, reason string) {
	c.closeWithCode(code, reason)
}

// closeWithCode sends a WebSocket close frame with code/reason exactly
// once and tears down the send channel, unblocking writePump.
func (c *Connection) closeWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		deadline := time.Now().Add(writeWait)
		c.conn.SetWriteDeadline(deadline)
		closeMsg := websocket.FormatCloseMessage(code, reason)
		c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		c.writeMu.Unlock()
		close(c.send)
		c.correlator.CancelAll(pkg.ErrConnectionClosed)
	})
}

func errorResponseFor(req *protocol.Message, code, message string) *protocol.Message {
	return protocol.NewError(req.ID, code, message)
}

// unused import guard for json — kept for callers that extend dispatch
// with typed payloads in tests.
var _ = json.RawMessage{}
