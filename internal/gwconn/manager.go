// Package gwconn maintains a resilient WebSocket connection to an
// OpenClaw gateway endpoint. A Manager owns one connection: it dials,
// authenticates, exchanges application-level heartbeats, buffers
// outbound frames across drops, and redials with exponential backoff.
// Inbound frames, state changes, and lifecycle events are delivered on a
// single dispatch goroutine in arrival order, so callback consumers
// never observe them out of sequence.
package gwconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// StatusAuthFailure is the close code the gateway uses to reject bad
// credentials. Reads failing with it surface as auth errors and stop
// the reconnect loop.
const StatusAuthFailure websocket.StatusCode = 4401

// maxFrameSize caps inbound frames at 4 MiB.
const maxFrameSize = 4 * 1024 * 1024

var (
	pingFrame = []byte(`{"type":"ping"}`)
	pongFrame = []byte(`{"type":"pong"}`)

	errNoPong = errors.New("pong not received")
)

// Config describes one gateway connection.
type Config struct {
	// URL is the gateway WebSocket endpoint (ws:// or wss://).
	URL string

	// Name labels this connection in logs, e.g. "chat" or "shell".
	Name string

	// Token authenticates the connection. By default it is sent as an
	// Authorization bearer header during the handshake; with AuthInFrame
	// it is sent as the first text frame after connecting instead.
	Token       string
	AuthInFrame bool

	DialTimeout       time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// QueueLimit bounds the outbound buffer. When full, the oldest
	// queued frame is dropped and counted (see Dropped).
	QueueLimit int

	Reconnect ReconnectPolicy
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "gateway"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 20 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = 256
	}
	c.Reconnect = c.Reconnect.withDefaults()
	return c
}

// FrameHandler receives inbound frames that are not gateway bookkeeping.
// Handlers run on the manager's dispatch goroutine.
type FrameHandler func(typ websocket.MessageType, data []byte)

// Manager owns one gateway connection and its lifecycle.
type Manager struct {
	cfg Config

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	dispatch   chan func()

	st     *stateTracker
	events *eventLog
	queue  *sendQueue
	pongCh chan struct{}

	mu           sync.Mutex
	conn         *websocket.Conn
	connCancel   context.CancelFunc
	gen          int // connection generation, guards stale goroutines
	retryCount   int
	lastPong     time.Time
	connecting   bool
	reconnecting bool
	closed       bool

	frameMu       sync.RWMutex
	frameHandlers []FrameHandler
}

// New creates a Manager. No connection is made until Connect.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		lifeCtx:    ctx,
		lifeCancel: cancel,
		dispatch:   make(chan func(), 64),
		st:         &stateTracker{},
		events:     &eventLog{},
		queue:      newSendQueue(cfg.QueueLimit),
		pongCh:     make(chan struct{}, 1),
	}
	go m.dispatcher()
	return m
}

// Connect dials the gateway once. It does not retry: automatic
// reconnection starts only after an established connection drops.
// Calling Connect while connected or while a reconnect is in progress is
// a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("gwconn %s: manager is closed", m.cfg.Name)
	}
	if m.conn != nil || m.connecting || m.reconnecting {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	m.setState(StateConnecting, "connect requested")
	if err := m.dial(ctx); err != nil {
		if IsAuth(err) {
			m.setState(StateFailed, err.Error())
			m.event(EventAuthFailed, err.Error())
		} else {
			m.setState(StateDisconnected, err.Error())
		}
		return err
	}
	m.setState(StateConnected, "connected to "+m.cfg.URL)
	m.event(EventConnected, m.cfg.URL)
	return nil
}

// Disconnect closes the connection and stops all background goroutines,
// including the dispatch sequence once queued callbacks have drained.
// It is idempotent; the manager cannot be reused afterwards.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conn := m.conn
	m.conn = nil
	connCancel := m.connCancel
	m.connCancel = nil
	m.mu.Unlock()

	if connCancel != nil {
		connCancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}

	m.setState(StateDisconnected, "disconnect requested")
	m.event(EventDisconnected, "client disconnect")
	m.lifeCancel()
}

// Send queues a frame for delivery. Frames sent while the connection is
// down are buffered and flushed in order once it is back; when the
// buffer is full the oldest frame is dropped and counted.
func (m *Manager) Send(typ websocket.MessageType, data []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return fmt.Errorf("gwconn %s: manager is closed", m.cfg.Name)
	}

	if m.queue.push(Frame{Type: typ, Data: data}) {
		log.Printf("[gwconn] %s: send queue full, dropped oldest frame (%d total)",
			m.cfg.Name, m.queue.droppedCount())
	}
	return nil
}

// State returns the current connection state.
func (m *Manager) State() State { return m.st.get() }

// StateTransitions returns the recent state transition history in
// chronological order. Up to 50 transitions are retained.
func (m *Manager) StateTransitions() []StateTransition { return m.st.history() }

// Events returns the recent connection event history in chronological
// order. Up to 100 events are retained.
func (m *Manager) Events() []Event { return m.events.history() }

// Dropped returns the total number of outbound frames dropped because
// the send queue was full.
func (m *Manager) Dropped() uint64 { return m.queue.droppedCount() }

// QueueSize returns the number of frames waiting to be written.
func (m *Manager) QueueSize() int { return m.queue.size() }

// RetryCount returns the current consecutive reconnect attempt counter.
func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// LastPong returns when the gateway last answered a heartbeat. Zero
// until the first pong arrives.
func (m *Manager) LastPong() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPong
}

// OnStateChange registers a callback invoked on every state change.
func (m *Manager) OnStateChange(cb StateChangeCallback) { m.st.onChange(cb) }

// OnEvent registers a listener for connection lifecycle events.
func (m *Manager) OnEvent(l EventListener) { m.events.onEvent(l) }

// OnFrame registers a handler for inbound frames. Gateway bookkeeping
// frames (ping/pong) are consumed by the manager and never reach
// handlers.
func (m *Manager) OnFrame(h FrameHandler) {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()
	m.frameHandlers = append(m.frameHandlers, h)
}

// dial establishes the WebSocket connection, authenticates, and starts
// the per-connection read, write, and heartbeat goroutines.
func (m *Manager) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	opts := &websocket.DialOptions{}
	if m.cfg.Token != "" && !m.cfg.AuthInFrame {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + m.cfg.Token}}
	}

	conn, resp, err := websocket.Dial(dialCtx, m.cfg.URL, opts)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return AuthError("dial", err)
		}
		if dialCtx.Err() != nil && ctx.Err() == nil {
			return TimeoutError("dial", err)
		}
		return NetworkError("dial", err)
	}
	conn.SetReadLimit(maxFrameSize)

	if m.cfg.AuthInFrame && m.cfg.Token != "" {
		frame, _ := json.Marshal(map[string]string{"type": "auth", "token": m.cfg.Token})
		if err := conn.Write(dialCtx, websocket.MessageText, frame); err != nil {
			conn.CloseNow()
			return NetworkError("auth frame", err)
		}
	}

	connCtx, connCancel := context.WithCancel(m.lifeCtx)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		connCancel()
		conn.CloseNow()
		return fmt.Errorf("gwconn %s: manager is closed", m.cfg.Name)
	}
	m.gen++
	gen := m.gen
	m.conn = conn
	m.connCancel = connCancel
	m.mu.Unlock()

	go m.readLoop(connCtx, conn, gen)
	go m.writeLoop(connCtx, conn, gen)
	go m.heartbeatLoop(connCtx, gen)

	// The retry counter resets only after the connection survives one
	// full heartbeat interval; a connection that drops earlier keeps
	// escalating the backoff.
	time.AfterFunc(m.cfg.HeartbeatInterval, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen == gen && m.conn != nil && m.retryCount > 0 {
			log.Printf("[gwconn] %s: connection stable, retry counter reset", m.cfg.Name)
			m.retryCount = 0
		}
	})
	return nil
}

// readLoop pumps inbound frames until the connection dies.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, gen int) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			m.connLost(gen, classifyReadError(err))
			return
		}
		if typ == websocket.MessageText && m.handleControl(data) {
			continue
		}
		m.dispatchFrame(typ, data)
	}
}

// classifyReadError maps a read failure to the error taxonomy. The
// gateway signals rejected credentials by closing with StatusAuthFailure.
func classifyReadError(err error) error {
	if websocket.CloseStatus(err) == StatusAuthFailure {
		return AuthError("read", err)
	}
	return NetworkError("read", err)
}

// handleControl consumes gateway bookkeeping frames. They are identified
// by the reserved type marker, never by payload heuristics, and are not
// delivered to frame handlers.
func (m *Manager) handleControl(data []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	switch probe.Type {
	case "ping":
		m.Send(websocket.MessageText, pongFrame)
		return true
	case "pong":
		m.mu.Lock()
		m.lastPong = time.Now()
		m.mu.Unlock()
		select {
		case m.pongCh <- struct{}{}:
		default:
		}
		return true
	}
	return false
}

func (m *Manager) dispatchFrame(typ websocket.MessageType, data []byte) {
	m.frameMu.RLock()
	handlers := make([]FrameHandler, len(m.frameHandlers))
	copy(handlers, m.frameHandlers)
	m.frameMu.RUnlock()

	if len(handlers) == 0 {
		return
	}
	m.emit(func() {
		for _, h := range handlers {
			h(typ, data)
		}
	})
}

// writeLoop drains the send queue onto the connection. A failed write
// requeues the frame so it is retried first after reconnecting.
func (m *Manager) writeLoop(ctx context.Context, conn *websocket.Conn, gen int) {
	for {
		f, ok := m.queue.next(ctx)
		if !ok {
			return
		}
		if err := conn.Write(ctx, f.Type, f.Data); err != nil {
			m.queue.requeue(f)
			m.connLost(gen, NetworkError("write", err))
			return
		}
	}
}

// heartbeatLoop sends an application-level ping every HeartbeatInterval
// and expects a pong within HeartbeatTimeout. A missed pong closes the
// connection and hands control to the reconnect loop.
func (m *Manager) heartbeatLoop(ctx context.Context, gen int) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drop a pong left over from a previous exchange.
		select {
		case <-m.pongCh:
		default:
		}

		if err := m.Send(websocket.MessageText, pingFrame); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-m.pongCh:
		case <-time.After(m.cfg.HeartbeatTimeout):
			m.event(EventHeartbeatTimeout, fmt.Sprintf("no pong within %s", m.cfg.HeartbeatTimeout))
			m.connLost(gen, TimeoutError("heartbeat", errNoPong))
			return
		}
	}
}

// connLost tears down the current connection and decides what happens
// next: nothing when the manager was closed or the connection was
// already replaced, StateFailed on auth rejection, otherwise
// StateReconnecting plus the backoff loop.
func (m *Manager) connLost(gen int, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.conn == nil {
		m.mu.Unlock()
		return // stale goroutine from a replaced connection
	}
	conn := m.conn
	m.conn = nil
	connCancel := m.connCancel
	m.connCancel = nil
	closed := m.closed
	if !closed && !IsAuth(cause) {
		m.reconnecting = true
	}
	m.mu.Unlock()

	connCancel()
	conn.CloseNow()

	if closed {
		return
	}

	if IsAuth(cause) {
		log.Printf("[gwconn] %s: authentication rejected: %v", m.cfg.Name, cause)
		m.setState(StateFailed, cause.Error())
		m.event(EventAuthFailed, cause.Error())
		return
	}

	log.Printf("[gwconn] %s: connection lost: %v", m.cfg.Name, cause)
	m.setState(StateReconnecting, cause.Error())
	m.event(EventDisconnected, cause.Error())
	go m.reconnectLoop()
}

// reconnectLoop redials with exponential backoff until it succeeds, auth
// is rejected, MaxRetries is exhausted, or the manager shuts down.
func (m *Manager) reconnectLoop() {
	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	for {
		m.mu.Lock()
		retry := m.retryCount
		m.mu.Unlock()

		if max := m.cfg.Reconnect.MaxRetries; max > 0 && retry >= max {
			log.Printf("[gwconn] %s: giving up after %d reconnect attempts", m.cfg.Name, retry)
			m.setState(StateFailed, fmt.Sprintf("gave up after %d attempts", retry))
			m.event(EventReconnectFailed, fmt.Sprintf("gave up after %d attempts", retry))
			return
		}

		delay := m.cfg.Reconnect.Delay(retry)
		m.event(EventReconnecting, fmt.Sprintf("attempt %d in %s", retry+1, delay.Round(time.Millisecond)))

		select {
		case <-m.lifeCtx.Done():
			return
		case <-time.After(delay):
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.retryCount++
		m.mu.Unlock()

		err := m.dial(m.lifeCtx)
		if err == nil {
			m.setState(StateConnected, fmt.Sprintf("reconnected after %d attempt(s)", retry+1))
			m.event(EventReconnected, fmt.Sprintf("after %d attempt(s)", retry+1))
			return
		}
		if IsAuth(err) {
			log.Printf("[gwconn] %s: reconnect rejected: %v", m.cfg.Name, err)
			m.setState(StateFailed, err.Error())
			m.event(EventAuthFailed, err.Error())
			return
		}
		log.Printf("[gwconn] %s: reconnect attempt %d failed: %v", m.cfg.Name, retry+1, err)
	}
}

// dispatcher executes queued callbacks one at a time in submission
// order. It exits after Disconnect, draining anything still queued.
func (m *Manager) dispatcher() {
	for {
		select {
		case fn := <-m.dispatch:
			fn()
		case <-m.lifeCtx.Done():
			for {
				select {
				case fn := <-m.dispatch:
					fn()
				default:
					return
				}
			}
		}
	}
}

// emit hands a callback to the dispatch goroutine. Callbacks submitted
// after shutdown are dropped.
func (m *Manager) emit(fn func()) {
	select {
	case m.dispatch <- fn:
	case <-m.lifeCtx.Done():
	}
}

func (m *Manager) setState(to State, reason string) {
	from, cbs, changed := m.st.set(to, reason)
	if !changed {
		return
	}
	log.Printf("[gwconn] %s: %s -> %s (%s)", m.cfg.Name, from, to, reason)
	if len(cbs) == 0 {
		return
	}
	m.emit(func() {
		for _, cb := range cbs {
			cb(from, to)
		}
	})
}

func (m *Manager) event(t EventType, details string) {
	e := Event{Type: t, Timestamp: time.Now(), Details: details}
	listeners := m.events.record(e)
	if len(listeners) == 0 {
		return
	}
	m.emit(func() {
		for _, l := range listeners {
			l(e)
		}
	})
}
