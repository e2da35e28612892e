// Package session wires one chat channel and one shell channel into a
// single gateway session. Each channel rides its own connection with
// its own heartbeat and reconnect loop; the session constructs the
// pair explicitly, starts and stops them together, and flattens their
// live state into one status snapshot for the HTTP API. Connection
// events are forwarded to an optional sink so they can be kept beyond
// the in-memory ring buffers.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gluk-w/clawlink/internal/gwchat"
	"github.com/gluk-w/clawlink/internal/gwconn"
	"github.com/gluk-w/clawlink/internal/gwshell"
)

// EventSink receives every connection event from both channels, labeled
// with the channel name.
type EventSink func(channel, event, details string)

// Config describes one gateway session.
type Config struct {
	ChatURL     string
	ShellURL    string
	AuthToken   string
	AuthInFrame bool

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	Reconnect         gwconn.ReconnectPolicy
	QueueLimit        int

	// MessageTimeout bounds how long a chat message may wait for
	// delivery before it is marked failed.
	MessageTimeout time.Duration

	TerminalRows int
	TerminalCols int
	Scrollback   int

	// EventSink, when set, receives connection events for durable
	// logging outside the managers' ring buffers.
	EventSink EventSink
}

// ChannelStatus is a point-in-time view of one connection. LastPongAt
// is zero until the gateway answers its first heartbeat.
type ChannelStatus struct {
	State      string    `json:"state"`
	RetryCount int       `json:"retry_count"`
	LastPongAt time.Time `json:"last_pong_at"`
	QueueSize  int       `json:"queue_size"`
	Dropped    uint64    `json:"dropped"`
}

// Status is the snapshot of both channels.
type Status struct {
	Chat  ChannelStatus `json:"chat"`
	Shell ChannelStatus `json:"shell"`
}

// Session owns the chat/shell pair for one gateway. Construct with New.
type Session struct {
	chatConn  *gwconn.Manager
	shellConn *gwconn.Manager
	chat      *gwchat.Channel
	shell     *gwshell.Channel

	mu      sync.Mutex
	stopped bool
}

// New builds the session's connection managers and channels. Nothing is
// dialed until Start.
func New(cfg Config) *Session {
	chatConn := gwconn.New(gwconn.Config{
		URL:               cfg.ChatURL,
		Name:              "chat",
		Token:             cfg.AuthToken,
		AuthInFrame:       cfg.AuthInFrame,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		QueueLimit:        cfg.QueueLimit,
		Reconnect:         cfg.Reconnect,
	})
	shellConn := gwconn.New(gwconn.Config{
		URL:               cfg.ShellURL,
		Name:              "shell",
		Token:             cfg.AuthToken,
		AuthInFrame:       cfg.AuthInFrame,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		QueueLimit:        cfg.QueueLimit,
		Reconnect:         cfg.Reconnect,
	})

	s := &Session{
		chatConn:  chatConn,
		shellConn: shellConn,
		chat:      gwchat.New(chatConn, cfg.MessageTimeout),
		shell:     gwshell.New(shellConn, cfg.TerminalRows, cfg.TerminalCols, cfg.Scrollback),
	}

	if sink := cfg.EventSink; sink != nil {
		chatConn.OnEvent(func(e gwconn.Event) { sink("chat", string(e.Type), e.Details) })
		shellConn.OnEvent(func(e gwconn.Event) { sink("shell", string(e.Type), e.Details) })
	}

	return s
}

// Start connects both channels. A failure on either side tears the
// other down again so the session never runs half-connected.
func (s *Session) Start(ctx context.Context) error {
	if err := s.chatConn.Connect(ctx); err != nil {
		return fmt.Errorf("connect chat channel: %w", err)
	}
	if err := s.shellConn.Connect(ctx); err != nil {
		s.chatConn.Disconnect()
		return fmt.Errorf("connect shell channel: %w", err)
	}
	return nil
}

// Stop disconnects both channels and stops the chat delivery timers.
// Safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.chatConn.Disconnect()
	s.shellConn.Disconnect()
	s.chat.Close()
}

// Chat returns the chat channel.
func (s *Session) Chat() *gwchat.Channel { return s.chat }

// Shell returns the shell channel.
func (s *Session) Shell() *gwshell.Channel { return s.shell }

// ChatConn returns the chat connection manager.
func (s *Session) ChatConn() *gwconn.Manager { return s.chatConn }

// ShellConn returns the shell connection manager.
func (s *Session) ShellConn() *gwconn.Manager { return s.shellConn }

// Status snapshots both connections.
func (s *Session) Status() Status {
	return Status{
		Chat:  channelStatus(s.chatConn),
		Shell: channelStatus(s.shellConn),
	}
}

func channelStatus(m *gwconn.Manager) ChannelStatus {
	return ChannelStatus{
		State:      m.State().String(),
		RetryCount: m.RetryCount(),
		LastPongAt: m.LastPong(),
		QueueSize:  m.QueueSize(),
		Dropped:    m.Dropped(),
	}
}

// LabeledEvent is a connection event tagged with its channel.
type LabeledEvent struct {
	Channel string       `json:"channel"`
	Event   gwconn.Event `json:"event"`
}

// Events returns the recent connection events, labeled by channel, in
// per-channel chronological order. An empty channel selects both.
func (s *Session) Events(channel string) []LabeledEvent {
	var out []LabeledEvent
	if channel == "" || channel == "chat" {
		for _, e := range s.chatConn.Events() {
			out = append(out, LabeledEvent{Channel: "chat", Event: e})
		}
	}
	if channel == "" || channel == "shell" {
		for _, e := range s.shellConn.Events() {
			out = append(out, LabeledEvent{Channel: "shell", Event: e})
		}
	}
	return out
}
