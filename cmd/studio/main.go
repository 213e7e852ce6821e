package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spritestudio/internal/assets"
	"spritestudio/internal/http/handlers"
	httpapi "spritestudio/internal/http/httpapi"
	"spritestudio/internal/infra"
	"spritestudio/internal/infra/credentials"
	"spritestudio/internal/poller"
	"spritestudio/internal/providers/genai"
	"spritestudio/internal/storage"
	"spritestudio/internal/studio"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := credentials.Open(cfg.CredentialPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.CredentialPath).Msg("failed to open credential store")
	}
	if !store.Present() && cfg.GeminiAPIKey != "" {
		if err := store.SetGeminiAPIKey(cfg.GeminiAPIKey); err != nil {
			logger.Warn().Err(err).Msg("failed to persist GEMINI_API_KEY")
		}
	}

	client, err := genai.NewClient(genai.Options{
		Credentials:   store,
		BaseURL:       cfg.GeminiBaseURL,
		ImageModel:    cfg.GeminiImageModel,
		EditModel:     cfg.GeminiEditModel,
		TextModel:     cfg.GeminiTextModel,
		ThinkingModel: cfg.GeminiThinkingModel,
		VideoModel:    cfg.GeminiVideoModel,
		Logger:        infra.Component(&logger, "genai"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}

	downloads, err := storage.NewFileStore(cfg.DownloadDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DownloadDir).Msg("failed to prepare download directory")
	}

	st := studio.New(studio.Options{
		Service:     client,
		Fetcher:     assets.NewFetcher(store, nil, infra.Component(&logger, "assets")),
		Credentials: store,
		Poller: poller.New(client, poller.Options{
			Interval:    cfg.VideoPollInterval,
			MaxAttempts: cfg.VideoPollMaxAttempt,
			Timeout:     cfg.VideoPollTimeout,
			Logger:      infra.Component(&logger, "poller"),
		}),
		Downloads:  downloads,
		FrameCount: cfg.SpriteFrameCount,
		Logger:     &logger,
	})
	defer st.Close()

	app := handlers.NewApp(cfg, logger, st, store)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("env", cfg.AppEnv).Bool("credential", store.Present()).Msgf("studio listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
