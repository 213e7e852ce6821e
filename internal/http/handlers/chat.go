package handlers

import (
	"net/http"

	"spritestudio/internal/domain"
)

type chatResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
	Options  domain.ChatOptions   `json:"options"`
	Pending  bool                 `json:"pending"`
}

func (a *App) chatState() chatResponse {
	return chatResponse{
		Messages: a.Studio.Chat.Messages(),
		Options:  a.Studio.Chat.Options(),
		Pending:  a.Studio.Chat.Pending(),
	}
}

// ChatHistory returns the conversation and toggles.
func (a *App) ChatHistory(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.chatState())
}

type chatSendRequest struct {
	Text string `json:"text"`
}

type chatSendResponse struct {
	Reply *domain.ChatMessage `json:"reply,omitempty"`
	chatResponse
}

// ChatSend posts a user message. On failure the history already ends with
// the apology message; GET /v1/chat shows it.
func (a *App) ChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatSendRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	reply, err := a.Studio.Chat.Send(r.Context(), req.Text)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, chatSendResponse{Reply: reply, chatResponse: a.chatState()})
}

type chatOptionsRequest struct {
	UseSearch   *bool `json:"use_search"`
	UseThinking *bool `json:"use_thinking"`
}

// ChatOptions updates the toggles. Turning one on turns the other off; when
// both are sent as true the last applied, thinking, wins.
func (a *App) ChatOptions(w http.ResponseWriter, r *http.Request) {
	var req chatOptionsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	if req.UseSearch != nil {
		a.Studio.Chat.SetSearch(*req.UseSearch)
	}
	if req.UseThinking != nil {
		a.Studio.Chat.SetThinking(*req.UseThinking)
	}
	a.json(w, http.StatusOK, a.chatState())
}
