package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"spritestudio/internal/infra"
	"spritestudio/internal/infra/credentials"
)

func main() {
	var (
		keyFlag  string
		pathFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "Gemini API key (fallbacks to GEMINI_API_KEY)")
	flag.StringVar(&pathFlag, "path", "", "Credential file (fallbacks to CREDENTIAL_PATH or ~/.spritestudio/credentials.json)")
	flag.Parse()

	_ = godotenv.Load()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "GEMINI API key is required via -key or environment")
		os.Exit(1)
	}

	path := strings.TrimSpace(pathFlag)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CREDENTIAL_PATH"))
	}
	if path == "" {
		var err error
		if path, err = infra.DefaultCredentialPath(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve credential path: %v\n", err)
			os.Exit(1)
		}
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "geminikey").Str("path", path).Logger()

	store, err := credentials.Open(path)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open credential store")
		os.Exit(1)
	}
	if err := store.SetGeminiAPIKey(key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist gemini api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("GEMINI API key stored at %s\n", store.Path())
}
