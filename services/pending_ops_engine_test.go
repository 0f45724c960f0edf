package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/protocol"
	"github.com/chm413/mochi-link/ws"
	"github.com/gorilla/websocket"
)

// fakeValidator is a scripted ws.TokenValidator; DrainOnReconnect's tests
// never exercise HTTP-level admission, so only the result it returns
// matters.
type fakeValidator struct {
	result models.TokenValidationResult
}

func (f *fakeValidator) ValidateToken(ctx context.Context, serverID, token, remoteIP string) (models.TokenValidationResult, error) {
	return f.result, nil
}

// fakePendingOpRepo is an in-memory PendingOperationRepository that also
// records the sequence of statuses each operation passed through, so tests
// can assert DrainOnReconnect marks an operation running before it marks
// it done/failed rather than jumping straight from pending to a terminal
// state.
type fakePendingOpRepo struct {
	mu        sync.Mutex
	byServer  map[string][]models.PendingOperation
	nextID    int
	statusLog map[string][]models.PendingOpStatus
}

func newFakePendingOpRepo() *fakePendingOpRepo {
	return &fakePendingOpRepo{
		byServer:  make(map[string][]models.PendingOperation),
		statusLog: make(map[string][]models.PendingOpStatus),
	}
}

func (r *fakePendingOpRepo) Enqueue(ctx context.Context, op *models.PendingOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	op.ID = "op-" + strconv.Itoa(r.nextID)
	op.CreatedAt = time.Now()
	r.byServer[op.ServerID] = append(r.byServer[op.ServerID], *op)
	r.statusLog[op.ID] = append(r.statusLog[op.ID], op.Status)
	return nil
}

func (r *fakePendingOpRepo) ListByServer(ctx context.Context, serverID string) ([]models.PendingOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PendingOperation, len(r.byServer[serverID]))
	copy(out, r.byServer[serverID])
	return out, nil
}

func (r *fakePendingOpRepo) Replace(ctx context.Context, serverID string, ops []models.PendingOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byServer[serverID] = ops
	return nil
}

func (r *fakePendingOpRepo) MarkStatus(ctx context.Context, id string, status models.PendingOpStatus, executedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusLog[id] = append(r.statusLog[id], status)
	for serverID, ops := range r.byServer {
		for i := range ops {
			if ops[i].ID == id {
				ops[i].Status = status
				ops[i].ExecutedAt = executedAt
				r.byServer[serverID] = ops
				return nil
			}
		}
	}
	return nil
}

func (r *fakePendingOpRepo) DeleteByServer(ctx context.Context, serverID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byServer, serverID)
	return nil
}

func (r *fakePendingOpRepo) statusesFor(id string) []models.PendingOpStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PendingOpStatus, len(r.statusLog[id]))
	copy(out, r.statusLog[id])
	return out
}

func TestPendingOpsEngine_CancelOutPair(t *testing.T) {
	repo := newFakePendingOpRepo()
	engine := NewPendingOpsEngine(repo, ws.NewHub(nil, nil, nil))

	if _, err := engine.Enqueue(context.Background(), "server-1", "whitelist.add", "Alice", nil); err != nil {
		t.Fatalf("Enqueue add: %v", err)
	}
	if _, err := engine.Enqueue(context.Background(), "server-1", "whitelist.remove", "Alice", nil); err != nil {
		t.Fatalf("Enqueue remove: %v", err)
	}

	queued, err := engine.ListQueued(context.Background(), "server-1")
	if err != nil {
		t.Fatalf("ListQueued: %v", err)
	}
	if len(queued) != 0 {
		t.Fatalf("expected the add/remove pair to cancel out after the optimize pass, got %+v", queued)
	}
}

func TestPendingOpsEngine_EnqueueRejectsEmptyTarget(t *testing.T) {
	repo := newFakePendingOpRepo()
	engine := NewPendingOpsEngine(repo, ws.NewHub(nil, nil, nil))

	if _, err := engine.Enqueue(context.Background(), "server-1", "whitelist.add", "", nil); err == nil {
		t.Fatal("expected an empty target to be rejected")
	}
}

// connectorStub dials wsURL, performs the U-WBP handshake, and answers every
// subsequent request frame with a canned success response, as a minimal
// stand-in for a real connector during DrainOnReconnect.
func connectorStub(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading handshake: %v", err)
	}
	hs, err := protocol.Parse(raw)
	if err != nil || hs.Op != protocol.OpHandshake {
		t.Fatalf("expected system.handshake, got %+v (err=%v)", hs, err)
	}
	reply, err := protocol.NewSystem(protocol.OpHandshake, ws.HandshakeInfo{
		CoreType: "java", CoreName: "paper", CoreVersion: "1.21",
		Capabilities: []string{"whitelist.add", "whitelist.remove"},
	})
	if err != nil {
		t.Fatalf("building handshake reply: %v", err)
	}
	reply.ID = hs.ID
	out, err := protocol.Encode(reply)
	if err != nil {
		t.Fatalf("encoding handshake reply: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
		t.Fatalf("writing handshake reply: %v", err)
	}

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req, err := protocol.Parse(raw)
			if err != nil || req.Type != protocol.TypeRequest {
				continue
			}
			resp, err := protocol.NewResponse(req.ID, req.Op, map[string]bool{"ok": true})
			if err != nil {
				continue
			}
			encoded, err := protocol.Encode(resp)
			if err != nil {
				continue
			}
			conn.WriteMessage(websocket.TextMessage, encoded)
		}
	}()

	return conn
}

// TestPendingOpsEngine_DrainMarksRunningBeforeTerminal exercises the
// replay path end to end: a queued operation is marked running before the
// request is dispatched, and done once the connector's response arrives,
// so a crash between those two writes is distinguishable from an
// operation that was never attempted.
func TestPendingOpsEngine_DrainMarksRunningBeforeTerminal(t *testing.T) {
	repo := newFakePendingOpRepo()
	hub := ws.NewHub(&fakeValidator{result: models.TokenValid}, nil, nil)
	engine := NewPendingOpsEngine(repo, hub)

	op, err := engine.Enqueue(context.Background(), "server-1", "whitelist.add", "Alice", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Admit(r.Context(), conn, "server-1", "127.0.0.1")
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := connectorStub(t, wsURL)
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsOnline("server-1") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !hub.IsOnline("server-1") {
		t.Fatal("expected server-1 to come online before draining")
	}

	engine.DrainOnReconnect(context.Background(), "server-1")

	statuses := repo.statusesFor(op.ID)
	if len(statuses) < 3 {
		t.Fatalf("expected pending -> running -> done, got %v", statuses)
	}
	if statuses[0] != models.PendingOpPending {
		t.Fatalf("expected the first status to be pending, got %v", statuses)
	}
	if statuses[1] != models.PendingOpRunning {
		t.Fatalf("expected replay to mark the operation running before dispatch, got %v", statuses)
	}
	last := statuses[len(statuses)-1]
	if last != models.PendingOpDone {
		t.Fatalf("expected the operation to finish done, got %v", statuses)
	}
}
