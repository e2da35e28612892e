package handlers

import (
	"net/http"
	"strconv"

	"github.com/gluk-w/clawlink/internal/logging"
	"github.com/gluk-w/clawlink/internal/store"
)

func GetServerLogs(w http.ResponseWriter, r *http.Request) {
	lines := 200
	if q := r.URL.Query().Get("lines"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			lines = n
		}
	}

	content, err := logging.ReadTail(lines)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logs": content})
}

func ClearServerLogs(w http.ResponseWriter, r *http.Request) {
	if err := logging.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetConnectionLog returns persisted connection events from the
// database, newest first. Unlike /events this survives restarts.
func GetConnectionLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	channel := r.URL.Query().Get("channel")
	if channel != "" && channel != "chat" && channel != "shell" {
		writeError(w, http.StatusBadRequest, "Unknown channel")
		return
	}

	rows, err := store.ListConnectionLogs(channel, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []store.ConnectionLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": rows})
}
