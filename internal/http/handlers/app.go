package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
	"spritestudio/internal/infra/credentials"
	"spritestudio/internal/studio"
)

// CredentialStore is the settings surface over the stored key.
type CredentialStore interface {
	Present() bool
	Path() string
	GeminiAPIKey() string
	SetGeminiAPIKey(key string) error
	Clear() error
}

var _ CredentialStore = (*credentials.Store)(nil)

// App carries the dependencies shared by every handler.
type App struct {
	Config      *infra.Config
	Logger      infra.Logger
	Studio      *studio.Studio
	Credentials CredentialStore

	upgrader websocket.Upgrader
}

// NewApp builds the handler container. Browser origins for the progress
// socket follow the CORS allow list.
func NewApp(cfg *infra.Config, logger infra.Logger, st *studio.Studio, creds CredentialStore) *App {
	if cfg == nil {
		cfg = &infra.Config{}
	}
	a := &App{Config: cfg, Logger: logger, Studio: st, Credentials: creds}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      a.checkOrigin,
	}
	return a
}

func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.Config.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: message, Kind: kind})
}

// fail renders err with the status its kind maps to.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	code := StatusFor(kind)
	resp := errorResponse{Error: domain.MessageOf(err), Kind: string(kind)}
	var derr *domain.Error
	if errors.As(err, &derr) && derr.Err != nil {
		resp.Detail = derr.Err.Error()
	}
	event := a.Logger.Warn()
	if code >= http.StatusInternalServerError {
		event = a.Logger.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Str("kind", string(kind)).Int("status", code).Msg("handlers: request failed")
	a.json(w, code, resp)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindCredentialMissing:
		return http.StatusPreconditionFailed
	case domain.KindCredential:
		return http.StatusUnauthorized
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCancelled:
		return http.StatusConflict
	case domain.KindDownload, domain.KindService, domain.KindPolling:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// attachment streams asset as a download.
func (a *App) attachment(w http.ResponseWriter, asset *domain.AssetResult) {
	contentType := asset.MIMEType
	if contentType == "" {
		contentType = http.DetectContentType(asset.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(asset.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": asset.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Data)
}
