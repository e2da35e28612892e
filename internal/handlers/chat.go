package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gluk-w/clawlink/internal/gwchat"
	"github.com/gluk-w/clawlink/internal/logutil"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendChatMessage submits one message to the gateway and returns its
// id. Delivery progress is visible through ListChatMessages.
func SendChatMessage(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	id, err := Sess.Chat().Send(req.Content)
	if err != nil {
		log.Printf("[handlers] chat send failed: %v", err)
		// The message is tracked as failed and stays retryable.
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"detail": "Send failed",
			"id":     id,
		})
		return
	}
	log.Printf("[handlers] chat message %s queued (%s)", id, logutil.Snippet(req.Content, 80))
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// ListChatMessages returns all tracked messages with their delivery
// statuses, plus the session context accumulated from the gateway.
func ListChatMessages(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}

	msgs := Sess.Chat().Messages()
	if msgs == nil {
		msgs = []gwchat.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":        msgs,
		"session_context": Sess.Chat().SessionContext(),
	})
}

// RetryChatMessage re-sends a failed message under its original id.
func RetryChatMessage(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := Sess.Chat().Status(id); !ok {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	if err := Sess.Chat().Retry(id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(gwchat.StatusSending),
	})
}
