package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"spritestudio/internal/infra/credentials"
)

type credentialResponse struct {
	Present bool   `json:"present"`
	Stored  bool   `json:"stored"`
	Masked  string `json:"masked,omitempty"`
	Path    string `json:"path,omitempty"`
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (a *App) credentialState() credentialResponse {
	key := a.Credentials.GeminiAPIKey()
	return credentialResponse{
		Present: a.Credentials.Present(),
		Stored:  key != "",
		Masked:  maskKey(key),
		Path:    a.Credentials.Path(),
	}
}

// GetCredential reports whether a key is configured without revealing it.
func (a *App) GetCredential(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.credentialState())
}

// PutCredential stores a new key and reopens every gate.
func (a *App) PutCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	if err := a.Credentials.SetGeminiAPIKey(req.APIKey); err != nil {
		if errors.Is(err, credentials.ErrEmptyKey) {
			a.error(w, http.StatusBadRequest, "invalid_input", "Please enter your Gemini API key.")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: store credential failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save the API key")
		return
	}
	a.Logger.Info().Msg("handlers: credential updated")
	a.json(w, http.StatusOK, a.credentialState())
}

// DeleteCredential removes the stored key.
func (a *App) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := a.Credentials.Clear(); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: clear credential failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to remove the API key")
		return
	}
	a.json(w, http.StatusOK, a.credentialState())
}

func maskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
