package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"spritestudio/internal/assets"
	"spritestudio/internal/domain"
	"spritestudio/internal/studio"
)

type spriteReferenceRequest struct {
	CharacterName string `json:"character_name"`
}

// SpritesReference renders a reference character from a name.
func (a *App) SpritesReference(w http.ResponseWriter, r *http.Request) {
	var req spriteReferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	res, err := a.Studio.Sprite.GenerateReference(r.Context(), req.CharacterName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newAssetResponse(res, "", true))
}

type spriteResponse struct {
	Frames     []assetResponse `json:"frames"`
	Sheet      *assetResponse  `json:"sheet,omitempty"`
	SheetError string          `json:"sheet_error,omitempty"`
	ArchiveURL string          `json:"archive_url"`
}

func newSpriteResponse(res *studio.SpriteResult) spriteResponse {
	resp := spriteResponse{SheetError: res.SheetErr, ArchiveURL: "/v1/sprites/archive"}
	for i := range res.Frames {
		resp.Frames = append(resp.Frames, newAssetResponse(&res.Frames[i], fmt.Sprintf("/v1/sprites/frames/%d", i), true))
	}
	if res.Sheet != nil {
		sheet := newAssetResponse(res.Sheet, "/v1/sprites/sheet", false)
		resp.Sheet = &sheet
	}
	return resp
}

// SpritesGenerate produces the animation frames and the sheet. The form
// takes an optional "image" upload; without it the stored reference is used.
func (a *App) SpritesGenerate(w http.ResponseWriter, r *http.Request) {
	img, ok := a.readImageForm(w, r, "image")
	if !ok {
		return
	}
	res, err := a.Studio.Sprite.Generate(r.Context(), img, r.FormValue("animation_prompt"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newSpriteResponse(res))
}

// SpritesSheet downloads the composited sheet.
func (a *App) SpritesSheet(w http.ResponseWriter, r *http.Request) {
	res := a.Studio.Sprite.Result()
	if res == nil || len(res.Frames) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no sprites generated yet")
		return
	}
	if res.Sheet == nil {
		a.error(w, http.StatusConflict, "sheet_unavailable", res.SheetErr)
		return
	}
	a.attachment(w, res.Sheet)
}

// SpritesFrame downloads one frame.
func (a *App) SpritesFrame(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "frame index must be a number")
		return
	}
	frame, err := a.Studio.Sprite.Frame(index)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", domain.MessageOf(err))
		return
	}
	a.attachment(w, frame)
}

// SpritesArchive downloads every frame and the sheet as a zip.
func (a *App) SpritesArchive(w http.ResponseWriter, r *http.Request) {
	data, err := a.Studio.Sprite.Archive()
	if err != nil {
		if domain.KindOf(err) == domain.KindInvalidInput {
			a.error(w, http.StatusNotFound, "not_found", domain.MessageOf(err))
			return
		}
		a.fail(w, r, err)
		return
	}
	a.attachment(w, &domain.AssetResult{MIMEType: "application/zip", Data: data, Filename: assets.ArchiveFilename})
}
