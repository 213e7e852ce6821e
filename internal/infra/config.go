package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	GeminiAPIKey        string
	GeminiBaseURL       string
	GeminiImageModel    string
	GeminiEditModel     string
	GeminiTextModel     string
	GeminiThinkingModel string
	GeminiVideoModel    string
	CredentialPath      string
	DownloadDir         string
	CORSAllowedOrigins  []string
	VideoPollInterval   time.Duration
	VideoPollMaxAttempt int
	VideoPollTimeout    time.Duration
	SpriteFrameCount    int
	MaxUploadBytes      int64
	GenerationRateLimit int
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiImageModel:    getEnv("GEMINI_IMAGE_MODEL", "imagen-4.0-generate-001"),
		GeminiEditModel:     getEnv("GEMINI_EDIT_MODEL", "gemini-2.5-flash-image"),
		GeminiTextModel:     getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiThinkingModel: getEnv("GEMINI_THINKING_MODEL", "gemini-2.5-pro"),
		GeminiVideoModel:    getEnv("GEMINI_VIDEO_MODEL", "veo-3.0-fast-generate-001"),
		CredentialPath:      os.Getenv("CREDENTIAL_PATH"),
		DownloadDir:         strings.TrimSpace(os.Getenv("DOWNLOAD_DIR")),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		VideoPollInterval:   time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 10)),
		VideoPollMaxAttempt: getEnvInt("VIDEO_POLL_MAX_ATTEMPTS", 90),
		VideoPollTimeout:    time.Minute * time.Duration(getEnvInt("VIDEO_POLL_TIMEOUT_MINUTES", 20)),
		SpriteFrameCount:    getEnvInt("SPRITE_FRAME_COUNT", 4),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		GenerationRateLimit: getEnvInt("GENERATION_RATE_LIMIT_PER_MINUTE", 30),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.CredentialPath == "" {
		path, err := DefaultCredentialPath()
		if err != nil {
			return nil, err
		}
		cfg.CredentialPath = path
	}

	if cfg.VideoPollInterval <= 0 {
		return nil, fmt.Errorf("VIDEO_POLL_INTERVAL_SECONDS must be positive")
	}

	if cfg.SpriteFrameCount <= 0 {
		return nil, fmt.Errorf("SPRITE_FRAME_COUNT must be positive")
	}

	return cfg, nil
}

// DefaultCredentialPath returns the per-user location of the credential file.
func DefaultCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".spritestudio", "credentials.json"), nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
