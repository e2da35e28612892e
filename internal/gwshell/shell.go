// Package gwshell implements the shell channel of a gateway connection.
// Keystrokes and terminal resizes go out as JSON control frames; the
// remote shell's output comes back as raw binary frames that are fed,
// in arrival order, into an ANSI decoder. The channel itself never
// interprets the byte stream — rendering state lives entirely in the
// decoder's screen.
package gwshell

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"

	"github.com/coder/websocket"

	"github.com/gluk-w/clawlink/internal/gwconn"
	"github.com/gluk-w/clawlink/internal/vterm"
)

// maxDim caps terminal dimensions accepted from callers. Matches the
// bound enforced on the remote pty side.
const maxDim = 500

// Conn is the connection surface the channel needs. *gwconn.Manager
// satisfies it.
type Conn interface {
	Send(typ websocket.MessageType, data []byte) error
	OnFrame(h gwconn.FrameHandler)
}

// inputFrame carries keystrokes to the remote shell. Data is base64 so
// arbitrary bytes survive the JSON encoding.
type inputFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// resizeFrame announces new terminal dimensions to the remote pty.
type resizeFrame struct {
	Type string `json:"type"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// Channel is the shell channel. Construct with New.
type Channel struct {
	conn Conn

	mu      sync.Mutex
	decoder *vterm.Decoder
	rows    int
	cols    int
	dropped uint64
}

// New creates the shell channel with a rows x cols screen retaining up
// to scrollback rows of history, and registers its frame handler on
// conn.
func New(conn Conn, rows, cols, scrollback int) *Channel {
	rows = clampDim(rows)
	cols = clampDim(cols)
	c := &Channel{
		conn:    conn,
		decoder: vterm.NewDecoder(rows, cols, scrollback),
		rows:    rows,
		cols:    cols,
	}
	conn.OnFrame(c.handleFrame)
	return c
}

// SendCommand forwards raw keystrokes to the remote shell.
func (c *Channel) SendCommand(data []byte) error {
	frame := inputFrame{Type: "input", Data: base64.StdEncoding.EncodeToString(data)}
	buf, _ := json.Marshal(frame)
	return c.conn.Send(websocket.MessageText, buf)
}

// Resize applies new dimensions to the local screen and announces them
// to the remote pty. The local grid is reflowed first so the screen
// stays consistent even when the announcement cannot be sent; repeating
// the same dimensions is harmless.
func (c *Channel) Resize(rows, cols int) error {
	rows = clampDim(rows)
	cols = clampDim(cols)

	c.mu.Lock()
	c.rows, c.cols = rows, cols
	c.decoder.Resize(rows, cols)
	c.mu.Unlock()

	frame := resizeFrame{Type: "resize", Rows: rows, Cols: cols}
	buf, _ := json.Marshal(frame)
	return c.conn.Send(websocket.MessageText, buf)
}

// Screen returns a snapshot of the decoded terminal state.
func (c *Channel) Screen() vterm.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decoder.Snapshot()
}

// Size returns the current terminal dimensions.
func (c *Channel) Size() (rows, cols int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows, c.cols
}

// ProtocolErrors returns the count of inbound control frames dropped
// as malformed. Bad escape sequences in the output stream are recovered
// inside the decoder and not counted here.
func (c *Channel) ProtocolErrors() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// handleFrame runs on the connection's dispatch goroutine, so decoder
// writes are already serialized with respect to each other; the lock
// only guards against concurrent Screen and Resize calls.
func (c *Channel) handleFrame(typ websocket.MessageType, data []byte) {
	if typ == websocket.MessageBinary {
		c.mu.Lock()
		c.decoder.Write(data)
		c.mu.Unlock()
		return
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		c.mu.Lock()
		c.dropped++
		n := c.dropped
		c.mu.Unlock()
		log.Printf("[gwshell] dropped control frame (%d malformed total): %v", n, gwconn.ProtocolError("control", err))
		return
	}
	// Ping and pong are consumed by the connection manager; whatever
	// text control frames remain carry no screen content.
}

func clampDim(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxDim {
		return maxDim
	}
	return n
}
