package handlers

import (
	"encoding/base64"
	"net/http"
)

type shellInputRequest struct {
	Data string `json:"data"` // base64-encoded keystrokes
}

// ShellInput forwards keystrokes to the remote shell.
func ShellInput(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}

	var req shellInputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Data must be base64")
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "Data is required")
		return
	}

	if err := Sess.Shell().SendCommand(raw); err != nil {
		writeError(w, http.StatusBadGateway, "Shell channel unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shellResizeRequest struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// ShellResize reflows the local screen and announces the new dimensions
// to the remote pty. Returns the dimensions actually applied, which may
// be clamped.
func ShellResize(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}

	var req shellResizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Rows < 1 || req.Cols < 1 {
		writeError(w, http.StatusBadRequest, "Rows and cols must be positive")
		return
	}

	if err := Sess.Shell().Resize(req.Rows, req.Cols); err != nil {
		writeError(w, http.StatusBadGateway, "Shell channel unavailable")
		return
	}
	rows, cols := Sess.Shell().Size()
	writeJSON(w, http.StatusOK, map[string]int{"rows": rows, "cols": cols})
}

// GetShellScreen returns the decoded terminal state. The default is the
// full styled cell grid; ?format=text returns plain rows for quick
// inspection.
func GetShellScreen(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w) {
		return
	}

	snap := Sess.Shell().Screen()
	if r.URL.Query().Get("format") == "text" {
		rows := make([]string, snap.Rows)
		for i := range rows {
			rows[i] = snap.RowText(i)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"rows":       rows,
			"cursor_row": snap.CursorRow,
			"cursor_col": snap.CursorCol,
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
