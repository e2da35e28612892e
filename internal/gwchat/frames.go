package gwchat

// Wire frames for the gateway chat endpoint. Every frame is a JSON text
// message discriminated by the reserved "type" field; the connection
// manager consumes ping/pong before frames reach this package.

const (
	frameCommand  = "command"
	frameResponse = "response"
	frameStatus   = "status"
	frameMeta     = "meta"
)

// commandFrame carries one outbound user message.
type commandFrame struct {
	Type           string            `json:"type"`
	ID             string            `json:"id"`
	Content        string            `json:"content"`
	SessionContext map[string]string `json:"sessionContext,omitempty"`
}

// responseFrame carries one inbound assistant chunk. An empty ID binds
// the chunk to the most recently sent command. IsFinal closes the
// stream; a final frame with content replaces the accumulated chunks,
// a final frame without content just terminates them.
type responseFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
	IsFinal bool   `json:"isFinal"`
}

// statusFrame reports a delivery status change for a sent message.
type statusFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

// metaFrame updates one session context key. The accumulated context is
// echoed back on every subsequent command.
type metaFrame struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
}
