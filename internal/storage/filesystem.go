package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spritestudio/internal/domain"
)

// FileStore keeps a local copy of produced assets under a download directory.
// A nil *FileStore is valid and saves nothing.
type FileStore struct {
	basePath string
}

// NewFileStore prepares basePath. An empty path disables saving and returns a
// nil store.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, nil
	}
	if abs, err := filepath.Abs(basePath); err == nil {
		basePath = abs
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Enabled reports whether assets are written to disk.
func (s *FileStore) Enabled() bool {
	return s != nil
}

// Save writes asset under prefix and returns the absolute path. A disabled
// store returns an empty path and no error.
func (s *FileStore) Save(ctx context.Context, prefix string, asset *domain.AssetResult) (string, error) {
	if s == nil {
		return "", nil
	}
	if asset == nil || len(asset.Data) == 0 {
		return "", errors.New("storage: empty asset")
	}
	name := asset.Filename
	if strings.TrimSpace(name) == "" {
		name = string(asset.Kind)
	}
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		name = prefix + "-" + filepath.Base(name)
	}
	key, err := s.Write(ctx, filepath.ToSlash(filepath.Join(string(asset.Kind), name)), asset.Data)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

// Write persists data at the relative key and returns the cleaned key. Keys
// cannot escape the storage root.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp := fullPath + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("storage: finalize file: %w", err)
	}
	return cleanKey, nil
}

func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
