package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/protocol"
	"golang.org/x/sync/singleflight"
)

// DefaultRequestTimeout is used when a caller does not specify one.
const DefaultRequestTimeout = 30 * time.Second

// pendingRequest is one outstanding request awaiting a correlated response,
// grounded on the teacher's send-channel-plus-resolver idiom from
// ws/client.go, generalized from fire-and-forget events to a correlated
// request/response pair with a deadline.
type pendingRequest struct {
	op      string
	resultC chan correlatorResult
	timer   *time.Timer
}

type correlatorResult struct {
	data json.RawMessage
	err  error
}

// Correlator implements the Request Correlator (C5): a per-connection
// pending-request map keyed by frame id, with deadline-based timeout,
// out-of-order resolution, and single-flight coalescing for operations the
// caller marks as such (e.g. "whitelist.sync").
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest

	sf singleflight.Group
}

// NewCorrelator constructs an empty Correlator for one connection's lifetime.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]*pendingRequest)}
}

// Register installs a pending entry for id, starting its deadline timer.
// The caller (sendRequest, below) is responsible for writing the frame to
// the wire after registering — registering first avoids a race where the
// response could arrive before the map entry exists.
func (c *Correlator) register(id, op string, timeout time.Duration) *pendingRequest {
	pr := &pendingRequest{op: op, resultC: make(chan correlatorResult, 1)}

	c.mu.Lock()
	c.pending[id] = pr
	c.mu.Unlock()

	pr.timer = time.AfterFunc(timeout, func() {
		c.reject(id, pkg.ErrTimeout)
	})
	return pr
}

// Resolve delivers a response's data to the waiter for id, if any is still
// outstanding. Responses for unknown/expired ids are silently dropped —
// they arrived after timeout or duplicate.
func (c *Correlator) Resolve(id string, data json.RawMessage) {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	pr.timer.Stop()
	pr.resultC <- correlatorResult{data: data}
}

// RejectRemote delivers a connector-reported error for id.
func (c *Correlator) RejectRemote(id, code, message string) {
	c.reject(id, fmt.Errorf("%w: %s (%s)", pkg.ErrProtocol, message, code))
}

func (c *Correlator) reject(id string, err error) {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	pr.timer.Stop()
	pr.resultC <- correlatorResult{err: err}
}

// CancelAll fails every outstanding pending request with err — called when
// the owning connection closes, so no caller blocks forever waiting on a
// reply that will never arrive.
func (c *Correlator) CancelAll(err error) {
	c.mu.Lock()
	entries := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, pr := range entries {
		pr.timer.Stop()
		pr.resultC <- correlatorResult{err: err}
	}
}

// frameWriter is the minimal surface the correlator needs from a
// Connection, kept as a tiny local interface so this file can be unit
// tested without a real websocket.
type frameWriter interface {
	writeFrame(m *protocol.Message) error
}

// SendRequest writes a request frame for op/data to w, then blocks until a
// correlated response arrives, timeout elapses, or ctx is cancelled.
// Matches testable property #5: a reply within timeout is observed exactly
// once; otherwise the caller observes Timeout exactly once.
func (c *Correlator) SendRequest(ctx context.Context, w frameWriter, op string, data any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	msg, err := protocol.NewRequest(op, data)
	if err != nil {
		return nil, err
	}

	pr := c.register(msg.ID, op, timeout)
	if err := w.writeFrame(msg); err != nil {
		c.reject(msg.ID, err)
		return nil, err
	}

	select {
	case res := <-pr.resultC:
		return res.data, res.err
	case <-ctx.Done():
		c.reject(msg.ID, ctx.Err())
		return nil, ctx.Err()
	}
}

// SendRequestSingleFlight coalesces concurrent SendRequest calls sharing
// the same key (by convention, "<serverId>:<op>") into one in-flight
// request, broadcasting its result to every waiter — useful for operations
// like "whitelist.sync" where several callers racing for the same server
// shouldn't each pay for their own round trip.
func (c *Correlator) SendRequestSingleFlight(ctx context.Context, w frameWriter, key, op string, data any, timeout time.Duration) (json.RawMessage, error) {
	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.SendRequest(ctx, w, op, data, timeout)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}
