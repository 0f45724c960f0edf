package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/protocol"
	"github.com/gorilla/websocket"
)

// fakeValidator is a scripted TokenValidator for the admission paths that
// never reach the HTTP-level handler (Hub.Admit/AdmitChallenge are
// exercised directly here, below Handler.HandleConnection).
type fakeValidator struct {
	result models.TokenValidationResult
	err    error
}

func (f *fakeValidator) ValidateToken(ctx context.Context, serverID, token, remoteIP string) (models.TokenValidationResult, error) {
	return f.result, f.err
}

// dialAndHandshake connects to srv's /ws endpoint and, if replyHandshake is
// true, answers the hub's system.handshake with a minimal HandshakeInfo so
// Hub.Admit's handshake wait resolves.
func dialAndHandshake(t *testing.T, wsURL string, replyHandshake bool) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if replyHandshake {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reading handshake frame: %v", err)
		}
		msg, err := protocol.Parse(raw)
		if err != nil || msg.Op != protocol.OpHandshake {
			t.Fatalf("expected a system.handshake frame, got %+v (err=%v)", msg, err)
		}
		reply, err := protocol.NewSystem(protocol.OpHandshake, HandshakeInfo{
			CoreType: "java", CoreName: "paper", CoreVersion: "1.21",
			Capabilities: []string{"whitelist.add", "command.execute"},
		})
		if err != nil {
			t.Fatalf("building handshake reply: %v", err)
		}
		reply.ID = msg.ID
		out, err := protocol.Encode(reply)
		if err != nil {
			t.Fatalf("encoding handshake reply: %v", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			t.Fatalf("writing handshake reply: %v", err)
		}
	}
	return conn
}

func TestHub_AdmitRegistersConnectionOnHandshake(t *testing.T) {
	hub := NewHub(&fakeValidator{result: models.TokenValid}, nil, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, err := hub.Admit(r.Context(), conn, "server-1", "127.0.0.1"); err != nil {
			t.Errorf("Admit: %v", err)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn := dialAndHandshake(t, wsURL, true)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsOnline("server-1") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !hub.IsOnline("server-1") {
		t.Fatal("expected server-1 to be registered as online after handshake")
	}
}

// TestHub_AdmitReplacesExistingConnection exercises the "a reconnecting
// connector always wins over its stale predecessor" rule: the first
// connection for server-1 must be closed with 1013 once a second
// connection for the same serverId is admitted.
func TestHub_AdmitReplacesExistingConnection(t *testing.T) {
	hub := NewHub(&fakeValidator{result: models.TokenValid}, nil, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Admit(r.Context(), conn, "server-1", "127.0.0.1")
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	first := dialAndHandshake(t, wsURL, true)
	defer first.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsOnline("server-1") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	closeCode := -1
	first.SetCloseHandler(func(code int, text string) error {
		closeCode = code
		return nil
	})
	go func() {
		for {
			if _, _, err := first.ReadMessage(); err != nil {
				return
			}
		}
	}()

	second := dialAndHandshake(t, wsURL, true)
	defer second.Close()

	deadline = time.Now().Add(2 * time.Second)
	for closeCode == -1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if closeCode != 1013 {
		t.Fatalf("expected the replaced connection to close with code 1013, got %d", closeCode)
	}
}

// TestHub_AdmitChallenge_MalformedResponseClosesProtocolError exercises
// the in-band challenge-response path: a connector that replies to
// system.auth.challenge with anything other than a well-formed
// system.auth.response is disconnected with close code 1002, and never
// reaches the registry.
func TestHub_AdmitChallenge_MalformedResponseClosesProtocolError(t *testing.T) {
	hub := NewHub(&fakeValidator{result: models.TokenValid}, nil, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, err := hub.AdmitChallenge(r.Context(), conn, "127.0.0.1"); err == nil {
			t.Error("expected AdmitChallenge to fail for a malformed auth response")
		}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading challenge frame: %v", err)
	}
	challenge, err := protocol.Parse(raw)
	if err != nil || challenge.Op != protocol.OpAuthChallenge {
		t.Fatalf("expected a system.auth.challenge frame, got %+v (err=%v)", challenge, err)
	}

	// Reply with the wrong op entirely instead of system.auth.response.
	badReply, err := protocol.NewSystem(protocol.OpPing, map[string]string{"serverId": "server-1", "token": "tok"})
	if err != nil {
		t.Fatalf("building bad reply: %v", err)
	}
	out, err := protocol.Encode(badReply)
	if err != nil {
		t.Fatalf("encoding bad reply: %v", err)
	}
	conn.WriteMessage(websocket.TextMessage, out)

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close frame, got err=%v", err)
	}
	if closeErr.Code != 1002 {
		t.Fatalf("expected close code 1002, got %d", closeErr.Code)
	}
}

// TestHub_AdmitChallenge_InvalidTokenClosesUnauthorized exercises the
// credential-rejected branch of the same path: a well-formed
// system.auth.response whose token fails validation still closes 1002 and
// never registers a connection.
func TestHub_AdmitChallenge_InvalidTokenClosesUnauthorized(t *testing.T) {
	hub := NewHub(&fakeValidator{result: models.TokenNotFound}, nil, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, err := hub.AdmitChallenge(r.Context(), conn, "127.0.0.1"); err == nil {
			t.Error("expected AdmitChallenge to fail for an invalid token")
		}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("reading challenge frame: %v", err)
	}

	resp, err := protocol.NewSystem(protocol.OpAuthResponse, map[string]string{"serverId": "server-1", "token": "bad-token"})
	if err != nil {
		t.Fatalf("building auth response: %v", err)
	}
	out, err := protocol.Encode(resp)
	if err != nil {
		t.Fatalf("encoding auth response: %v", err)
	}
	conn.WriteMessage(websocket.TextMessage, out)

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close frame, got err=%v", err)
	}
	if closeErr.Code != 1002 {
		t.Fatalf("expected close code 1002, got %d", closeErr.Code)
	}
	if hub.IsOnline("server-1") {
		t.Fatal("expected no connection to be registered for an unauthorized challenge response")
	}
}
