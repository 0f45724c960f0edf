package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/protocol"
	"github.com/gorilla/websocket"
)

// ServerLookup is the minimal surface Handler needs to reject a
// connectionMode that does not belong on /ws — rcon/terminal servers are
// adapted by an outbound-connecting bridge, not this inbound endpoint.
// Kept as a small local interface, same ISP move as TokenValidator, so
// repository.ServerRepository satisfies it without ws importing
// repository directly.
type ServerLookup interface {
	GetByID(ctx context.Context, id string) (*models.Server, error)
}

// upgrader grounds on the teacher's ws/handler.go upgrader, same buffer
// sizing; CheckOrigin stays permissive since connectors are
// server-to-server clients, not browsers subject to CSRF-style origin
// spoofing.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades /ws requests and admits them into the Hub. It performs
// HTTP-level admission (token lookup, IP whitelist, connectionMode check)
// before handing off to Hub.Admit for the U-WBP handshake itself — the
// same two-phase split the teacher's ws/handler.go uses (HTTP-level auth,
// then Hub registration).
type Handler struct {
	hub                   *Hub
	validator             TokenValidator
	servers               ServerLookup
	challengeResponseAuth bool
}

// NewHandler constructs the /ws upgrade handler. challengeResponseAuth
// enables the in-band system.auth.challenge compatibility path
// (SecurityConfig.ChallengeResponseAuth) for connectors that cannot set
// the query parameters or headers this handler otherwise requires before
// the upgrade.
func NewHandler(hub *Hub, validator TokenValidator, servers ServerLookup, challengeResponseAuth bool) *Handler {
	return &Handler{hub: hub, validator: validator, servers: servers, challengeResponseAuth: challengeResponseAuth}
}

// HandleConnection runs the connector admission sequence:
//  1. read serverId + token, from query params or from the X-Server-ID/
//     X-Auth-Token headers — either presentation is accepted, since
//     browsers/lightweight connector clients cannot always set arbitrary
//     headers during the upgrade handshake, but other clients prefer not
//     to put a bearer credential in a URL that ends up in access logs
//  2. if neither is presented at all and challenge-response auth is
//     enabled, upgrade unauthenticated and hand off to
//     Hub.AdmitChallenge, which runs the in-band challenge/response
//     exchange instead
//  3. otherwise validate the token against the presented serverId and
//     remote IP before upgrading
//  4. hand off to Hub.Admit, which runs the U-WBP handshake and registers
//     the connection, replacing any prior one for the same serverId
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	serverID := r.URL.Query().Get("serverId")
	if serverID == "" {
		serverID = r.Header.Get("X-Server-ID")
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Auth-Token")
	}

	remoteIP := remoteIPOf(r)

	if serverID == "" && token == "" {
		if !h.challengeResponseAuth {
			http.Error(w, "missing serverId", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, err := h.hub.AdmitChallenge(r.Context(), conn, remoteIP); err != nil {
			slog.Warn("ws challenge admission failed", "error", err)
		}
		return
	}
	if serverID == "" {
		http.Error(w, "missing serverId", http.StatusBadRequest)
		return
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	result, err := h.validator.ValidateToken(r.Context(), serverID, token, remoteIP)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	switch result {
	case models.TokenValid:
	case models.TokenNotFound:
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	case models.TokenExpired:
		http.Error(w, "token expired", http.StatusUnauthorized)
		return
	case models.TokenIPDenied:
		http.Error(w, "ip not allowed", http.StatusForbidden)
		return
	default:
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	server, err := h.servers.GetByID(r.Context(), serverID)
	if err != nil {
		http.Error(w, "unknown server", http.StatusNotFound)
		return
	}
	if server.ConnectionMode != models.ConnectionModePlugin {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		errMsg := protocol.NewError("", "UNSUPPORTED_CONNECTION_MODE",
			"this server's connectionMode does not accept inbound /ws connections")
		if raw, encErr := protocol.Encode(errMsg); encErr == nil {
			conn.WriteMessage(websocket.TextMessage, raw)
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1008, "unsupported connection mode"))
		conn.Close()
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "serverId", serverID, "error", err)
		return
	}

	if _, err := h.hub.Admit(r.Context(), conn, serverID, remoteIP); err != nil {
		slog.Warn("ws admission failed", "serverId", serverID, "error", err)
		conn.Close()
		return
	}
}

func remoteIPOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
