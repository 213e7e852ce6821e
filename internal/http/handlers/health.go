package handlers

import (
	"encoding/json"
	"net/http"

	"spritestudio/internal/studio"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tabsResponse struct {
	Active            studio.Tab         `json:"active"`
	CredentialPresent bool               `json:"credential_present"`
	Tabs              []studio.TabStatus `json:"tabs"`
}

// Tabs lists the feature tabs with their lock state.
func (a *App) Tabs(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, tabsResponse{
		Active:            a.Studio.Active(),
		CredentialPresent: a.Studio.Gate().Present(),
		Tabs:              a.Studio.Tabs(),
	})
}

type selectTabRequest struct {
	Tab string `json:"tab"`
}

// SelectTab switches the active tab.
func (a *App) SelectTab(w http.ResponseWriter, r *http.Request) {
	var req selectTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	tab, err := studio.ParseTab(req.Tab)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	a.Studio.Select(tab)
	a.Tabs(w, r)
}
