package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"spritestudio/internal/domain"
	"spritestudio/internal/studio"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

type videoKeyResponse struct {
	KeySelected bool `json:"key_selected"`
}

// VideoKeyStatus reports the video tab's own key gate.
func (a *App) VideoKeyStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, videoKeyResponse{KeySelected: a.Studio.Video.KeySelected()})
}

// VideoKeySelect opens the video tab's key gate for the stored key.
func (a *App) VideoKeySelect(w http.ResponseWriter, r *http.Request) {
	if err := a.Studio.Video.SelectKey(); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, videoKeyResponse{KeySelected: true})
}

// VideosCreate starts a video run from a multipart upload.
func (a *App) VideosCreate(w http.ResponseWriter, r *http.Request) {
	img, ok := a.readImageForm(w, r, "image")
	if !ok {
		return
	}
	run, err := a.Studio.Video.Submit(r.Context(), img, r.FormValue("prompt"), r.FormValue("aspect_ratio"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/videos/"+run.ID)
	a.json(w, http.StatusAccepted, run)
}

// VideosCurrent returns the most recent run.
func (a *App) VideosCurrent(w http.ResponseWriter, r *http.Request) {
	run, ok := a.Studio.Video.Current()
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "no video run yet")
		return
	}
	a.json(w, http.StatusOK, run)
}

// VideoStatus returns one run.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	run, err := a.Studio.Video.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", domain.MessageOf(err))
		return
	}
	a.json(w, http.StatusOK, run)
}

// VideoDownload streams the finished video.
func (a *App) VideoDownload(w http.ResponseWriter, r *http.Request) {
	asset, err := a.Studio.Video.Asset(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", domain.MessageOf(err))
		return
	}
	a.attachment(w, asset)
}

// VideoCancel stops a run.
func (a *App) VideoCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Studio.Video.Cancel(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", domain.MessageOf(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VideoEvents upgrades to a websocket and pushes run events until the run
// ends or the client goes away.
func (a *App) VideoEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, release, err := a.Studio.Video.Subscribe(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", domain.MessageOf(err))
		return
	}
	defer release()

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", id).Msg("handlers: websocket upgrade failed")
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go readUntilClose(conn, gone)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				a.Logger.Debug().Err(err).Str("job_id", id).Msg("handlers: websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev studio.VideoEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

// readUntilClose drains client frames so pongs and close frames are
// processed, and signals gone once the connection drops.
func readUntilClose(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
