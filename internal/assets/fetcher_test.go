package assets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"spritestudio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type staticKey string

func (k staticKey) APIKey() string { return string(k) }

func TestFetchAppendsKey(t *testing.T) {
	var gotURL string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Header:     http.Header{"Content-Type": []string{"video/mp4"}},
			Body:       io.NopCloser(strings.NewReader("mp4-bytes")),
		}, nil
	})}
	f := NewFetcher(staticKey("secret"), client, nil)

	asset, err := f.Fetch(context.Background(), "https://files.example/v1/video:download?alt=media", domain.AssetKindVideo)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !strings.Contains(gotURL, "key=secret") || !strings.Contains(gotURL, "alt=media") {
		t.Fatalf("expected key appended to locator, got %s", gotURL)
	}
	if string(asset.Data) != "mp4-bytes" || asset.MIMEType != "video/mp4" || asset.Filename != "generated-video.mp4" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
}

func TestFetchNon2xxIsDownloadError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Status:     "403 Forbidden",
			Body:       io.NopCloser(strings.NewReader("denied")),
		}, nil
	})}
	f := NewFetcher(staticKey("secret"), client, nil)

	_, err := f.Fetch(context.Background(), "https://files.example/v.mp4", domain.AssetKindVideo)
	if !errors.Is(err, domain.ErrDownload) {
		t.Fatalf("expected download error, got %v", err)
	}
	if !strings.Contains(err.Error(), "403 Forbidden") {
		t.Fatalf("expected status text in error, got %v", err)
	}
}

func TestFetchWithoutKey(t *testing.T) {
	f := NewFetcher(staticKey(""), nil, nil)
	if _, err := f.Fetch(context.Background(), "https://files.example/v.mp4", domain.AssetKindVideo); !errors.Is(err, domain.ErrCredentialMissing) {
		t.Fatalf("expected credential missing, got %v", err)
	}
}

func TestFetchRejectsNonHTTPLocator(t *testing.T) {
	f := NewFetcher(staticKey("k"), nil, nil)
	if _, err := f.Fetch(context.Background(), "file:///etc/passwd", domain.AssetKindVideo); !errors.Is(err, domain.ErrDownload) {
		t.Fatalf("expected download error, got %v", err)
	}
}

func TestSuggestedFilename(t *testing.T) {
	cases := map[domain.AssetKind]string{
		domain.AssetKindImage:       "generated-image.jpg",
		domain.AssetKindEditedImage: "edited-image.png",
		domain.AssetKindVideo:       "generated-video.mp4",
		domain.AssetKindSpriteSheet: "sprite-sheet.png",
	}
	for kind, want := range cases {
		if got := SuggestedFilename(kind); got != want {
			t.Fatalf("SuggestedFilename(%s) = %s, want %s", kind, got, want)
		}
	}
}
