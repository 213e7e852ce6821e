package infra

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CREDENTIAL_PATH", "")
	t.Setenv("VIDEO_POLL_INTERVAL_SECONDS", "")
	t.Setenv("VIDEO_POLL_MAX_ATTEMPTS", "")
	t.Setenv("SPRITE_FRAME_COUNT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.VideoPollInterval != 10*time.Second {
		t.Fatalf("VideoPollInterval = %s, want 10s", cfg.VideoPollInterval)
	}
	if cfg.VideoPollMaxAttempt != 90 {
		t.Fatalf("VideoPollMaxAttempt = %d, want 90", cfg.VideoPollMaxAttempt)
	}
	if cfg.SpriteFrameCount != 4 {
		t.Fatalf("SpriteFrameCount = %d, want 4", cfg.SpriteFrameCount)
	}
	if filepath.Base(cfg.CredentialPath) != "credentials.json" {
		t.Fatalf("CredentialPath = %q, want credentials.json under home", cfg.CredentialPath)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigHonorsExplicitValues(t *testing.T) {
	t.Setenv("CREDENTIAL_PATH", "/tmp/creds.json")
	t.Setenv("VIDEO_POLL_INTERVAL_SECONDS", "3")
	t.Setenv("MAX_UPLOAD_MB", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CredentialPath != "/tmp/creds.json" {
		t.Fatalf("CredentialPath = %q", cfg.CredentialPath)
	}
	if cfg.VideoPollInterval != 3*time.Second {
		t.Fatalf("VideoPollInterval = %s, want 3s", cfg.VideoPollInterval)
	}
	if cfg.MaxUploadBytes != 2<<20 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	expected := []string{"http://a.test", "http://b.test"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins = %#v, want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsZeroFrameCount(t *testing.T) {
	t.Setenv("CREDENTIAL_PATH", "/tmp/creds.json")
	t.Setenv("SPRITE_FRAME_COUNT", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for zero frame count")
	}
}
