package config

import (
	"log"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	// Gateway endpoints. ShellURL falls back to the chat host with the
	// /shell path when left empty (derived in Load).
	ChatURL  string `envconfig:"CHAT_URL" default:"ws://localhost:18789/ws/chat"`
	ShellURL string `envconfig:"SHELL_URL" default:"ws://localhost:18789/shell"`

	// Auth token for the gateway. AuthInFrame switches from the
	// Authorization header to a first-frame token handshake.
	AuthToken   string `envconfig:"AUTH_TOKEN" default:""`
	AuthInFrame bool   `envconfig:"AUTH_IN_FRAME" default:"false"`

	// Active profile name. When set, gateway endpoints and token are
	// loaded from the profile store instead of the env.
	Profile string `envconfig:"PROFILE" default:""`

	DataPath     string `envconfig:"DATA_PATH" default:"/app/data"`
	LogPath      string `envconfig:"LOG_PATH" default:""`
	DatabasePath string `envconfig:"DATABASE_PATH" default:""`
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8900"`

	// Heartbeat and reconnect tuning
	HeartbeatInterval string  `envconfig:"HEARTBEAT_INTERVAL" default:"20s"`
	HeartbeatTimeout  string  `envconfig:"HEARTBEAT_TIMEOUT" default:"10s"`
	ReconnectBase     string  `envconfig:"RECONNECT_BASE" default:"1s"`
	ReconnectMax      string  `envconfig:"RECONNECT_MAX" default:"30s"`
	ReconnectMult     float64 `envconfig:"RECONNECT_MULT" default:"2.0"`
	ReconnectJitter   float64 `envconfig:"RECONNECT_JITTER" default:"0.2"`
	ReconnectRetries  int     `envconfig:"RECONNECT_RETRIES" default:"0"`

	// Outbound frame queue bound per channel
	SendQueueLimit int `envconfig:"SEND_QUEUE_LIMIT" default:"256"`

	// Terminal settings
	TerminalRows    int `envconfig:"TERMINAL_ROWS" default:"24"`
	TerminalCols    int `envconfig:"TERMINAL_COLS" default:"80"`
	ScrollbackLines int `envconfig:"SCROLLBACK_LINES" default:"1000"`

	// Chat message timeout before a sending message is marked failed
	MessageTimeout string `envconfig:"MESSAGE_TIMEOUT" default:"30s"`

	// Days of connection-log rows kept in the database
	EventRetentionDays int `envconfig:"EVENT_RETENTION_DAYS" default:"7"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("CLAWLINK", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if Cfg.LogPath == "" {
		Cfg.LogPath = filepath.Join(Cfg.DataPath, "clawlink.log")
	}
	if Cfg.DatabasePath == "" {
		Cfg.DatabasePath = filepath.Join(Cfg.DataPath, "clawlink.db")
	}
}
