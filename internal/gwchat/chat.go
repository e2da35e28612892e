// Package gwchat implements the chat channel of a gateway connection:
// sending user messages, assembling streamed responses, tracking
// delivery statuses, and folding gateway session metadata into the
// context echoed with every command. Frames arrive on the connection
// manager's dispatch goroutine, so handlers observe sends, statuses,
// and response chunks in wire order.
package gwchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/gluk-w/clawlink/internal/gwconn"
)

// Conn is the connection surface the channel needs. *gwconn.Manager
// satisfies it.
type Conn interface {
	Send(typ websocket.MessageType, data []byte) error
	OnFrame(h gwconn.FrameHandler)
}

// PartialHandler receives one streamed response chunk.
type PartialHandler func(id, chunk string)

// CompletedHandler receives the final content of a completed response.
type CompletedHandler func(id, content string)

// Message is a tracked outbound message with its content.
type Message struct {
	Entry
	Content string `json:"content"`
}

// Channel is the chat channel. Construct with New.
type Channel struct {
	conn    Conn
	tracker *Tracker

	mu             sync.Mutex
	sessionContext map[string]string
	contents       map[string]string // outbound content by id, kept for Retry
	streams        map[string]*strings.Builder
	activeID       string // most recent send, claims responses without an id
	partialCbs     []PartialHandler
	completedCbs   []CompletedHandler
	protoErrs      uint64
}

// New creates the chat channel on top of conn and registers its frame
// handler. timeout bounds how long a message may wait for delivery
// before it is marked failed; non-positive means DefaultTimeout.
func New(conn Conn, timeout time.Duration) *Channel {
	c := &Channel{
		conn:           conn,
		tracker:        NewTracker(timeout),
		sessionContext: make(map[string]string),
		contents:       make(map[string]string),
		streams:        make(map[string]*strings.Builder),
	}
	conn.OnFrame(c.handleFrame)
	return c
}

// Send submits one user message and returns its generated id right
// away; delivery progress arrives through the status tracker. If
// handing the frame to the connection fails, the message is recorded as
// failed and its id is returned alongside the error so it stays
// inspectable and retryable.
func (c *Channel) Send(content string) (string, error) {
	id := uuid.New().String()

	c.mu.Lock()
	frame := commandFrame{
		Type:           frameCommand,
		ID:             id,
		Content:        content,
		SessionContext: copyContext(c.sessionContext),
	}
	c.contents[id] = content
	c.activeID = id
	c.mu.Unlock()

	if err := c.tracker.Track(id); err != nil {
		return "", err
	}
	c.sweepEvicted()

	data, _ := json.Marshal(frame)
	if err := c.conn.Send(websocket.MessageText, data); err != nil {
		c.tracker.Fail(id, "send failed")
		return id, err
	}
	return id, nil
}

// sweepEvicted drops stored content and stream buffers for messages the
// tracker has evicted, keeping the maps bounded like the tracker itself.
func (c *Channel) sweepEvicted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.contents) <= trackerCapacity+32 {
		return
	}
	for id := range c.contents {
		if _, tracked := c.tracker.Status(id); !tracked {
			delete(c.contents, id)
			delete(c.streams, id)
		}
	}
}

// Retry re-sends a failed message with its original id and content,
// incrementing its retry counter. Only failed messages can be retried.
func (c *Channel) Retry(id string) error {
	c.mu.Lock()
	content, ok := c.contents[id]
	sessionContext := copyContext(c.sessionContext)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("message %s not found", id)
	}

	if _, err := c.tracker.Retry(id); err != nil {
		return err
	}

	c.mu.Lock()
	c.activeID = id
	c.mu.Unlock()

	frame := commandFrame{
		Type:           frameCommand,
		ID:             id,
		Content:        content,
		SessionContext: sessionContext,
	}
	data, _ := json.Marshal(frame)
	if err := c.conn.Send(websocket.MessageText, data); err != nil {
		c.tracker.Fail(id, "send failed")
		return err
	}
	return nil
}

// OnPartial registers a handler for streamed response chunks.
func (c *Channel) OnPartial(h PartialHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partialCbs = append(c.partialCbs, h)
}

// OnCompleted registers a handler for completed responses.
func (c *Channel) OnCompleted(h CompletedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completedCbs = append(c.completedCbs, h)
}

// OnStatus registers a callback for delivery status changes.
func (c *Channel) OnStatus(cb UpdateCallback) { c.tracker.OnUpdate(cb) }

// Status returns the delivery status of a sent message.
func (c *Channel) Status(id string) (Status, bool) { return c.tracker.Status(id) }

// Tracker exposes the underlying status tracker.
func (c *Channel) Tracker() *Tracker { return c.tracker }

// Messages returns all tracked messages with their content, oldest
// first.
func (c *Channel) Messages() []Message {
	entries := c.tracker.Entries()

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(entries))
	for i, e := range entries {
		out[i] = Message{Entry: e, Content: c.contents[e.ID]}
	}
	return out
}

// SessionContext returns a copy of the accumulated session context.
func (c *Channel) SessionContext() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.sessionContext))
	for k, v := range c.sessionContext {
		out[k] = v
	}
	return out
}

// ProtocolErrors returns the count of inbound frames dropped as
// malformed.
func (c *Channel) ProtocolErrors() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protoErrs
}

// Close disarms all delivery timers. The channel must not be used
// afterwards.
func (c *Channel) Close() { c.tracker.Stop() }

// handleFrame runs on the connection's dispatch goroutine.
func (c *Channel) handleFrame(typ websocket.MessageType, data []byte) {
	if typ != websocket.MessageText {
		c.noteProtocolError("frame", fmt.Errorf("unexpected binary frame (%d bytes)", len(data)))
		return
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		c.noteProtocolError("frame", err)
		return
	}

	switch probe.Type {
	case frameResponse:
		var f responseFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.noteProtocolError(frameResponse, err)
			return
		}
		c.handleResponse(f)
	case frameStatus:
		var f statusFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.noteProtocolError(frameStatus, err)
			return
		}
		c.handleStatus(f)
	case frameMeta:
		var f metaFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.noteProtocolError(frameMeta, err)
			return
		}
		c.handleMeta(f)
	default:
		// Unknown frame types are future protocol, not errors.
	}
}

func (c *Channel) handleResponse(f responseFrame) {
	c.mu.Lock()
	id := f.ID
	if id == "" {
		id = c.activeID
	}
	if id == "" {
		c.mu.Unlock()
		c.noteProtocolError(frameResponse, errors.New("response without id and no active message"))
		return
	}

	if !f.IsFinal {
		b := c.streams[id]
		if b == nil {
			b = &strings.Builder{}
			c.streams[id] = b
		}
		b.WriteString(f.Content)
		cbs := make([]PartialHandler, len(c.partialCbs))
		copy(cbs, c.partialCbs)
		c.mu.Unlock()

		for _, cb := range cbs {
			cb(id, f.Content)
		}
		return
	}

	// Final chunk: its content wins when present, otherwise the
	// accumulated chunks stand.
	content := f.Content
	if b := c.streams[id]; b != nil {
		if content == "" {
			content = b.String()
		}
		delete(c.streams, id)
	}
	cbs := make([]CompletedHandler, len(c.completedCbs))
	copy(cbs, c.completedCbs)
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(id, content)
	}
}

func (c *Channel) handleStatus(f statusFrame) {
	switch Status(f.Status) {
	case StatusSending:
		// The initial state is set locally; a gateway echo is a no-op.
	case StatusSent, StatusDelivered, StatusRead:
		c.tracker.Update(f.ID, Status(f.Status))
	case StatusFailed:
		c.tracker.Fail(f.ID, "reported by gateway")
	default:
		c.noteProtocolError(frameStatus, fmt.Errorf("unknown status %q", f.Status))
	}
}

func (c *Channel) handleMeta(f metaFrame) {
	if f.Key == "" {
		c.noteProtocolError(frameMeta, errors.New("meta frame without key"))
		return
	}
	c.mu.Lock()
	c.sessionContext[f.Key] = f.Value
	c.mu.Unlock()
}

func (c *Channel) noteProtocolError(op string, err error) {
	c.mu.Lock()
	c.protoErrs++
	n := c.protoErrs
	c.mu.Unlock()
	log.Printf("[gwchat] dropped frame (%d malformed total): %v", n, gwconn.ProtocolError(op, err))
}

// copyContext snapshots the session context for embedding in a command
// frame; nil when empty so the field is omitted on the wire.
func copyContext(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
