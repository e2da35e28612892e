package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gluk-w/clawlink/internal/session"
)

// Sess is the active gateway session, injected from main before the
// router starts serving.
var Sess *session.Session

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decodeJSON reads a request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// requireSession guards handlers that need a live session.
func requireSession(w http.ResponseWriter) bool {
	if Sess == nil {
		writeError(w, http.StatusServiceUnavailable, "No active session")
		return false
	}
	return true
}
