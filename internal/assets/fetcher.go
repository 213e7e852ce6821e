// Package assets downloads generated media that the service only exposes by
// locator.
package assets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
)

// maxAssetBytes bounds a single download.
const maxAssetBytes = 512 << 20

// CredentialSource yields the key appended to every locator.
type CredentialSource interface {
	APIKey() string
}

// Fetcher performs the authenticated secondary GET for a result locator.
type Fetcher struct {
	creds      CredentialSource
	httpClient *http.Client
	logger     *infra.Logger
}

// NewFetcher builds a Fetcher. A nil httpClient gets a client sized for video
// downloads.
func NewFetcher(creds CredentialSource, httpClient *http.Client, logger *infra.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Fetcher{creds: creds, httpClient: httpClient, logger: logger}
}

// Fetch downloads locator and returns its bytes as an asset of kind.
func (f *Fetcher) Fetch(ctx context.Context, locator string, kind domain.AssetKind) (*domain.AssetResult, error) {
	const op = "download asset"
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, domain.InvalidInput(op, "result locator is required")
	}
	key := ""
	if f.creds != nil {
		key = f.creds.APIKey()
	}
	if key == "" {
		return nil, domain.NewError(domain.KindCredentialMissing, op, "API key is not configured", nil)
	}
	target, err := withKey(locator, key)
	if err != nil {
		return nil, domain.NewError(domain.KindDownload, op, "invalid result locator", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindDownload, op, "create request", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.NewError(domain.KindCancelled, op, "download cancelled", ctxErr)
		}
		return nil, domain.NewError(domain.KindDownload, op, "", fmt.Errorf("fetch asset: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		e := domain.NewError(domain.KindDownload, op, "Failed to download video: "+statusText(resp), nil)
		e.Status = resp.StatusCode
		f.logger.Warn().Int("status", resp.StatusCode).Str("kind", string(kind)).Msg("assets: download failed")
		return nil, e
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, domain.NewError(domain.KindDownload, op, "read asset body", err)
	}
	if len(data) > maxAssetBytes {
		return nil, domain.NewError(domain.KindDownload, op, "asset exceeds the download limit", nil)
	}

	mimeType := resp.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	f.logger.Debug().Str("kind", string(kind)).Int("bytes", len(data)).Msg("assets: downloaded")
	return &domain.AssetResult{
		Kind:     kind,
		MIMEType: mimeType,
		Data:     data,
		Filename: SuggestedFilename(kind),
	}, nil
}

func withKey(locator, key string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// statusText renders the status line the way browsers expose it, for
// example "404 Not Found".
func statusText(resp *http.Response) string {
	if s := strings.TrimSpace(resp.Status); s != "" {
		return s
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// SuggestedFilename is the download name offered for an asset kind.
func SuggestedFilename(kind domain.AssetKind) string {
	switch kind {
	case domain.AssetKindImage:
		return "generated-image.jpg"
	case domain.AssetKindEditedImage:
		return "edited-image.png"
	case domain.AssetKindVideo:
		return "generated-video.mp4"
	case domain.AssetKindSpriteSheet:
		return "sprite-sheet.png"
	case domain.AssetKindSpriteFrame:
		return "sprite-frame.png"
	default:
		return "asset.bin"
	}
}

// ArchiveFilename is the download name of the zipped sprite frames.
const ArchiveFilename = "sprite-frames.zip"
