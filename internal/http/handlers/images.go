package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"spritestudio/internal/domain"
	"spritestudio/internal/sprite"
	"spritestudio/internal/studio"
)

type assetResponse struct {
	Kind        domain.AssetKind `json:"kind"`
	MIMEType    string           `json:"mime_type"`
	Filename    string           `json:"filename"`
	Size        int              `json:"size"`
	Width       int              `json:"width,omitempty"`
	Height      int              `json:"height,omitempty"`
	Data        string           `json:"data,omitempty"`
	DownloadURL string           `json:"download_url,omitempty"`
}

func newAssetResponse(asset *domain.AssetResult, downloadURL string, inline bool) assetResponse {
	resp := assetResponse{
		Kind:        asset.Kind,
		MIMEType:    asset.MIMEType,
		Filename:    asset.Filename,
		Size:        asset.Size(),
		DownloadURL: downloadURL,
	}
	if asset.Kind != domain.AssetKindVideo {
		resp.Width, resp.Height = sprite.Dimensions(asset.Data)
	}
	if inline {
		resp.Data = base64.StdEncoding.EncodeToString(asset.Data)
	}
	return resp
}

type imageGenerateRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// ImagesGenerate renders a prompt into an image.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req imageGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	res, err := a.Studio.Image.Generate(r.Context(), req.Prompt, req.AspectRatio)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newAssetResponse(res, "/v1/assets/"+string(domain.AssetKindImage), true))
}

// ImagesEdit applies an instruction to an uploaded image.
func (a *App) ImagesEdit(w http.ResponseWriter, r *http.Request) {
	img, ok := a.readImageForm(w, r, "image")
	if !ok {
		return
	}
	res, err := a.Studio.Editor.Edit(r.Context(), img, r.FormValue("prompt"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newAssetResponse(res, "/v1/assets/"+string(domain.AssetKindEditedImage), true))
}

type analyzeResponse struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// ImagesAnalyze answers a question about an uploaded image.
func (a *App) ImagesAnalyze(w http.ResponseWriter, r *http.Request) {
	img, ok := a.readImageForm(w, r, "image")
	if !ok {
		return
	}
	prompt := r.FormValue("prompt")
	answer, err := a.Studio.Analyzer.Analyze(r.Context(), img, prompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if prompt == "" {
		prompt = studio.DefaultAnalyzePrompt
	}
	a.json(w, http.StatusOK, analyzeResponse{Prompt: prompt, Answer: answer})
}

// AssetDownload serves the last image or edit result as an attachment.
func (a *App) AssetDownload(w http.ResponseWriter, r *http.Request) {
	var asset *domain.AssetResult
	switch domain.AssetKind(chi.URLParam(r, "kind")) {
	case domain.AssetKindImage:
		asset = a.Studio.Image.Result()
	case domain.AssetKindEditedImage:
		asset = a.Studio.Editor.Result()
	case domain.AssetKindSpriteSheet:
		if res := a.Studio.Sprite.Result(); res != nil {
			asset = res.Sheet
		}
	default:
		a.error(w, http.StatusNotFound, "not_found", "unknown asset kind")
		return
	}
	if asset == nil {
		a.error(w, http.StatusNotFound, "not_found", "nothing to download yet")
		return
	}
	a.attachment(w, asset)
}
