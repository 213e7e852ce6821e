package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"spritestudio/internal/http/handlers"
	"spritestudio/internal/middleware"
)

// NewRouter mounts every studio endpoint under /v1.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
		middleware.WriteTimeout(app.Config.HTTPWriteTimeout),
	)

	generate := middleware.RateLimit(app.Config.GenerationRateLimit, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/tabs", app.Tabs)
		r.Put("/tabs", app.SelectTab)

		r.Route("/settings/credential", func(r chi.Router) {
			r.Get("/", app.GetCredential)
			r.Put("/", app.PutCredential)
			r.Delete("/", app.DeleteCredential)
		})

		r.Route("/images", func(r chi.Router) {
			r.Use(generate)
			r.Post("/generate", app.ImagesGenerate)
			r.Post("/edit", app.ImagesEdit)
			r.Post("/analyze", app.ImagesAnalyze)
		})

		r.Route("/sprites", func(r chi.Router) {
			r.With(generate).Post("/reference", app.SpritesReference)
			r.With(generate).Post("/generate", app.SpritesGenerate)
			r.Get("/sheet", app.SpritesSheet)
			r.Get("/frames/{index}", app.SpritesFrame)
			r.Get("/archive", app.SpritesArchive)
		})

		r.Route("/videos", func(r chi.Router) {
			r.With(generate).Post("/", app.VideosCreate)
			r.Get("/key", app.VideoKeyStatus)
			r.Post("/key", app.VideoKeySelect)
			r.Get("/current", app.VideosCurrent)
			r.Get("/{id}", app.VideoStatus)
			r.Get("/{id}/download", app.VideoDownload)
			r.Get("/{id}/events", app.VideoEvents)
			r.Delete("/{id}", app.VideoCancel)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", app.ChatHistory)
			r.With(generate).Post("/messages", app.ChatSend)
			r.Put("/options", app.ChatOptions)
		})

		r.Get("/assets/{kind}", app.AssetDownload)
	})

	return r
}
