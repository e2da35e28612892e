package handlers

import (
	"net/http"

	"github.com/gluk-w/clawlink/internal/session"
	"github.com/gluk-w/clawlink/internal/store"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if store.DB != nil {
		if sqlDB, err := store.DB.DB(); err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": dbStatus,
	})
}

// GetStatus reports both channels' connection state, retry counters,
// last pong times, and queue pressure.
func GetStatus(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}
	writeJSON(w, http.StatusOK, Sess.Status())
}

// GetEvents returns recent connection events, optionally filtered with
// ?channel=chat or ?channel=shell.
func GetEvents(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel != "" && channel != "chat" && channel != "shell" {
		writeError(w, http.StatusBadRequest, "Unknown channel")
		return
	}

	events := Sess.Events(channel)
	if events == nil {
		events = []session.LabeledEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
