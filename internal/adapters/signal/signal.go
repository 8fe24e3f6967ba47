// Package signal is the websocket side of the party server: a Hub that
// implements core.Transport over one connection per session, and the
// Controller that maps client requests onto party operations.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// ReasonReplaced closes a session's previous connection when it reconnects.
const ReasonReplaced = "session.replaced"

const (
	defaultSendBuffer = 32
	defaultPingPeriod = 54 * time.Second
	writeWait         = 5 * time.Second
)

// Handler serves client requests arriving on a connection.
type Handler interface {
	// HandleRequest returns the response payload. A *core.WireError is
	// sent to the client as is; any other error is reported as internal.
	HandleRequest(ctx context.Context, sid core.SessionID, route string, payload json.RawMessage) (any, error)
	// OnClose runs once, after the session's current connection is gone.
	OnClose(sid core.SessionID, reason string)
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

// Hub tracks the live connection of every session.
type Hub struct {
	opts Options

	mu    sync.RWMutex
	conns map[core.SessionID]*Conn
}

var _ core.Transport = (*Hub)(nil)

func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	return &Hub{opts: opts, conns: make(map[core.SessionID]*Conn)}
}

type Conn struct {
	sid  core.SessionID
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	reason  string
	pending map[string]chan core.Envelope
}

func newConn(sid core.SessionID, ws *websocket.Conn, buffer int) *Conn {
	return &Conn{
		sid:     sid,
		ws:      ws,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		pending: make(map[string]chan core.Envelope),
	}
}

func (c *Conn) TrySend(f []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// closeWith closes the connection once; the first reason wins.
func (c *Conn) closeWith(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.reason = reason
	close(c.done)
	c.mu.Unlock()

	go func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.ws.Close()
	}()
}

func (c *Conn) closeReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Conn) await(id string) (chan core.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	ch := make(chan core.Envelope, 1)
	c.pending[id] = ch
	return ch, true
}

func (c *Conn) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Conn) resolve(env core.Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.ID]
	delete(c.pending, env.ID)
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Str("id", env.ID).Msg("response to unknown request")
		return
	}
	ch <- env
}

// Serve takes ownership of ws for sid and returns immediately. An older
// connection of the same session is closed without reporting OnClose.
func (h *Hub) Serve(ctx context.Context, sid core.SessionID, ws *websocket.Conn, handler Handler) {
	c := newConn(sid, ws, h.opts.SendBuffer)
	h.mu.Lock()
	old := h.conns[sid]
	h.conns[sid] = c
	h.mu.Unlock()
	if old != nil {
		old.closeWith(ReasonReplaced)
	}

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, c)
	go h.readPump(ctx, cancel, c, handler)
}

func (h *Hub) conn(sid core.SessionID) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[sid]
	return c, ok
}

// remove drops c and reports whether it was the session's current one.
func (h *Hub) remove(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.sid] != c {
		return false
	}
	delete(h.conns, c.sid)
	return true
}

// Send delivers a request to the session and waits for its response.
func (h *Hub) Send(ctx context.Context, to core.SessionID, route string, payload any) (json.RawMessage, error) {
	c, ok := h.conn(to)
	if !ok {
		return nil, core.ErrPeerDisconnected
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", route, err)
	}
	id := uuid.NewString()
	frame, err := json.Marshal(core.Envelope{Type: core.EnvelopeRequest, ID: id, Route: route, Payload: body})
	if err != nil {
		return nil, err
	}

	reply, ok := c.await(id)
	if !ok {
		return nil, core.ErrPeerDisconnected
	}
	defer c.forget(id)
	if err := c.TrySend(frame); err != nil {
		if errors.Is(err, ErrConnClosed) {
			return nil, core.ErrPeerDisconnected
		}
		return nil, err
	}

	select {
	case env := <-reply:
		if env.Error != nil {
			return nil, env.Error
		}
		if len(env.Payload) == 0 {
			return json.RawMessage("null"), nil
		}
		return env.Payload, nil
	case <-c.done:
		return nil, core.ErrPeerDisconnected
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s to %s: %w", core.ErrTimeout, route, to, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// Disconnect closes the session's connection with reason. It does not wait
// for the close handshake.
func (h *Hub) Disconnect(to core.SessionID, reason string) error {
	c, ok := h.conn(to)
	if !ok {
		return core.ErrPeerDisconnected
	}
	log.Info().Str("module", "signal").Str("sid", string(to)).Str("reason", reason).Msg("disconnecting")
	c.closeWith(reason)
	return nil
}

// CloseAll closes every connection, for shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.closeWith(reason)
	}
}
