package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/gluk-w/clawlink/internal/crypto"
	"github.com/gluk-w/clawlink/internal/store"
)

type profileResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ChatURL     string    `json:"chat_url"`
	ShellURL    string    `json:"shell_url"`
	AuthInFrame bool      `json:"auth_in_frame"`
	TokenMasked string    `json:"token_masked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func profileToResponse(p store.Profile) profileResponse {
	masked := ""
	if p.AuthToken != "" {
		if tok, err := crypto.Decrypt(p.AuthToken); err == nil {
			masked = crypto.Mask(tok)
		}
	}
	return profileResponse{
		ID:          p.ID,
		Name:        p.Name,
		ChatURL:     p.ChatURL,
		ShellURL:    p.ShellURL,
		AuthInFrame: p.AuthInFrame,
		TokenMasked: masked,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := store.ListProfiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]profileResponse, len(profiles))
	for i, p := range profiles {
		out[i] = profileToResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": out})
}

type profileRequest struct {
	Name        string `json:"name"`
	ChatURL     string `json:"chat_url"`
	ShellURL    string `json:"shell_url"`
	AuthToken   string `json:"auth_token"` // plaintext; encrypted at rest
	AuthInFrame bool   `json:"auth_in_frame"`
}

// SaveProfile creates or updates a profile by name. An empty auth_token
// clears the stored token.
func SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.ChatURL == "" || req.ShellURL == "" {
		writeError(w, http.StatusBadRequest, "Name, chat_url and shell_url are required")
		return
	}

	encrypted := ""
	if req.AuthToken != "" {
		var err error
		encrypted, err = crypto.Encrypt(req.AuthToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encrypt token")
			return
		}
	}

	p := store.Profile{
		Name:        req.Name,
		ChatURL:     req.ChatURL,
		ShellURL:    req.ShellURL,
		AuthToken:   encrypted,
		AuthInFrame: req.AuthInFrame,
	}
	if err := store.SaveProfile(&p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profileToResponse(p))
}

func DeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := store.DeleteProfile(name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type profileYAML struct {
	Name        string `yaml:"name"`
	ChatURL     string `yaml:"chat_url"`
	ShellURL    string `yaml:"shell_url"`
	AuthToken   string `yaml:"auth_token,omitempty"`
	AuthInFrame bool   `yaml:"auth_in_frame,omitempty"`
}

type profileExportDoc struct {
	Profiles []profileYAML `yaml:"profiles"`
}

// ExportProfiles emits all profiles as YAML with tokens decrypted, so
// the file can be imported on a machine with a different encryption
// key. Treat the output as a secret.
func ExportProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := store.ListProfiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc := profileExportDoc{Profiles: make([]profileYAML, len(profiles))}
	for i, p := range profiles {
		token := ""
		if p.AuthToken != "" {
			if tok, err := crypto.Decrypt(p.AuthToken); err == nil {
				token = tok
			}
		}
		doc.Profiles[i] = profileYAML{
			Name:        p.Name,
			ChatURL:     p.ChatURL,
			ShellURL:    p.ShellURL,
			AuthToken:   token,
			AuthInFrame: p.AuthInFrame,
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode profiles")
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="profiles.yaml"`)
	w.Write(data)
}

// ImportProfiles reads an exported YAML document and upserts every
// profile in it, re-encrypting tokens with the local key.
func ImportProfiles(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Cannot read request body")
		return
	}

	var doc profileExportDoc
	if err := yaml.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid YAML")
		return
	}

	imported := 0
	for _, in := range doc.Profiles {
		if in.Name == "" || in.ChatURL == "" || in.ShellURL == "" {
			continue
		}
		encrypted := ""
		if in.AuthToken != "" {
			encrypted, err = crypto.Encrypt(in.AuthToken)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to encrypt token")
				return
			}
		}
		p := store.Profile{
			Name:        in.Name,
			ChatURL:     in.ChatURL,
			ShellURL:    in.ShellURL,
			AuthToken:   encrypted,
			AuthInFrame: in.AuthInFrame,
		}
		if err := store.SaveProfile(&p); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		imported++
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}
