package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gluk-w/clawlink/internal/gwconn"
	"github.com/gluk-w/clawlink/internal/session"
	"github.com/gluk-w/clawlink/internal/store"
)

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled
// when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// setupTestDB points the store at a fresh in-memory SQLite database.
func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&store.Profile{}, &store.Setting{}, &store.ConnectionLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	prev := store.DB
	store.DB = db
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		store.DB = prev
	})
}

// testGateway runs one scripted WebSocket endpoint. A nil handler keeps
// the socket open and discards inbound frames.
type testGateway struct {
	srv     *httptest.Server
	handler func(ctx context.Context, conn *websocket.Conn)
}

func newTestGateway(t *testing.T, handler func(ctx context.Context, conn *websocket.Conn)) *testGateway {
	t.Helper()
	g := &testGateway{handler: handler}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		if g.handler != nil {
			g.handler(r.Context(), conn)
			return
		}
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *testGateway) url() string { return "ws" + strings.TrimPrefix(g.srv.URL, "http") }

// startTestSession connects a session against the two gateways and
// installs it as the handlers' package session.
func startTestSession(t *testing.T, chatGW, shellGW *testGateway, messageTimeout time.Duration) *session.Session {
	t.Helper()
	if messageTimeout <= 0 {
		messageTimeout = time.Minute
	}
	s := session.New(session.Config{
		ChatURL:  chatGW.url(),
		ShellURL: shellGW.url(),
		Reconnect: gwconn.ReconnectPolicy{
			BaseDelay:  20 * time.Millisecond,
			MaxDelay:   100 * time.Millisecond,
			Multiplier: 2,
		},
		MessageTimeout: messageTimeout,
		TerminalRows:   24,
		TerminalCols:   80,
		Scrollback:     100,
	})
	if err := s.Start(testContext(t)); err != nil {
		t.Fatalf("start session: %v", err)
	}

	prev := Sess
	Sess = s
	t.Cleanup(func() {
		Sess = prev
		s.Stop()
	})
	return s
}

// echoChatGateway acks every command with a sent status and a final
// response.
func echoChatGateway(t *testing.T) *testGateway {
	return newTestGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var probe struct {
				Type string `json:"type"`
				ID   string `json:"id"`
			}
			if json.Unmarshal(data, &probe) != nil || probe.Type != "command" {
				continue
			}
			status, _ := json.Marshal(map[string]any{"type": "status", "id": probe.ID, "status": "sent"})
			if err := conn.Write(ctx, websocket.MessageText, status); err != nil {
				return
			}
			resp, _ := json.Marshal(map[string]any{"type": "response", "id": probe.ID, "content": "Hello!", "isFinal": true})
			if err := conn.Write(ctx, websocket.MessageText, resp); err != nil {
				return
			}
		}
	})
}

// recordingShellGateway records inbound text control frames and can
// push terminal output.
type recordingShellGateway struct {
	*testGateway

	mu     sync.Mutex
	frames []string
	conn   *websocket.Conn
	ctx    context.Context
}

func newRecordingShellGateway(t *testing.T) *recordingShellGateway {
	g := &recordingShellGateway{}
	g.testGateway = newTestGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		g.mu.Lock()
		g.conn = conn
		g.ctx = ctx
		g.mu.Unlock()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText {
				g.mu.Lock()
				g.frames = append(g.frames, string(data))
				g.mu.Unlock()
			}
		}
	})
	return g
}

func (g *recordingShellGateway) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.frames...)
}

func (g *recordingShellGateway) pushOutput(t *testing.T, data []byte) {
	t.Helper()
	var conn *websocket.Conn
	var ctx context.Context
	waitFor(t, "shell gateway connection", func() bool {
		g.mu.Lock()
		conn, ctx = g.conn, g.ctx
		g.mu.Unlock()
		return conn != nil
	})
	if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		t.Fatalf("push output: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// doJSON performs a request against a handler func and decodes the JSON
// response body into a generic map.
func doJSON(t *testing.T, h http.HandlerFunc, method, target string, payload interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)

	var m map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
			t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, m
}
