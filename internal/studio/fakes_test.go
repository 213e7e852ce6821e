package studio

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra/credentials"
	"spritestudio/internal/poller"
)

type fakeService struct {
	mu    sync.Mutex
	calls []string

	generateImage func(ctx context.Context, prompt, aspect string) (*domain.AssetResult, error)
	editImage     func(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error)
	analyzeImage  func(ctx context.Context, img *domain.InputImage, prompt string) (string, error)
	spriteFrames  func(ctx context.Context, ref *domain.InputImage, prompt string, n int) ([]domain.AssetResult, error)
	submitVideo   func(ctx context.Context, img *domain.InputImage, prompt, aspect string) (*domain.GenerationJob, error)
	checkVideo    func(ctx context.Context, job *domain.GenerationJob) (*domain.GenerationJob, error)
	sendChat      func(ctx context.Context, history []domain.ChatMessage, msg string, opts domain.ChatOptions) (*domain.ChatMessage, error)
}

func (f *fakeService) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeService) GenerateImage(ctx context.Context, prompt, aspect string) (*domain.AssetResult, error) {
	f.record("GenerateImage")
	return f.generateImage(ctx, prompt, aspect)
}

func (f *fakeService) EditImage(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error) {
	f.record("EditImage")
	return f.editImage(ctx, img, prompt)
}

func (f *fakeService) AnalyzeImage(ctx context.Context, img *domain.InputImage, prompt string) (string, error) {
	f.record("AnalyzeImage")
	return f.analyzeImage(ctx, img, prompt)
}

func (f *fakeService) GenerateSpriteFrames(ctx context.Context, ref *domain.InputImage, prompt string, n int) ([]domain.AssetResult, error) {
	f.record("GenerateSpriteFrames")
	return f.spriteFrames(ctx, ref, prompt, n)
}

func (f *fakeService) SubmitVideo(ctx context.Context, img *domain.InputImage, prompt, aspect string) (*domain.GenerationJob, error) {
	f.record("SubmitVideo")
	return f.submitVideo(ctx, img, prompt, aspect)
}

func (f *fakeService) CheckVideoStatus(ctx context.Context, job *domain.GenerationJob) (*domain.GenerationJob, error) {
	f.record("CheckVideoStatus")
	return f.checkVideo(ctx, job)
}

func (f *fakeService) SendChat(ctx context.Context, history []domain.ChatMessage, msg string, opts domain.ChatOptions) (*domain.ChatMessage, error) {
	f.record("SendChat")
	return f.sendChat(ctx, history, msg, opts)
}

type fakeFetcher struct {
	fetch func(ctx context.Context, locator string, kind domain.AssetKind) (*domain.AssetResult, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, locator string, kind domain.AssetKind) (*domain.AssetResult, error) {
	return f.fetch(ctx, locator, kind)
}

func pngBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func keyedStore(t *testing.T) *credentials.Store {
	t.Helper()
	store := credentials.NewMemoryStore()
	if err := store.SetGeminiAPIKey("test-key"); err != nil {
		t.Fatalf("SetGeminiAPIKey: %v", err)
	}
	return store
}

func newTestStudio(t *testing.T, svc *fakeService, fetcher Fetcher, store *credentials.Store) *Studio {
	t.Helper()
	s := New(Options{
		Service:     svc,
		Fetcher:     fetcher,
		Credentials: store,
		Poller:      poller.New(svc, poller.Options{Interval: time.Millisecond, MaxAttempts: 50, Timeout: time.Minute}),
	})
	t.Cleanup(s.Close)
	return s
}

var sampleImage = &domain.InputImage{Filename: "hero.png", MIMEType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nstub")}
