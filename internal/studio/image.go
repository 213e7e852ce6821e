package studio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spritestudio/internal/assets"
	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
	"spritestudio/internal/storage"
)

// DefaultAnalyzePrompt is used when the analyzer prompt is left empty.
const DefaultAnalyzePrompt = "Describe this image in detail."

// ImageGenerator is the text-to-image tab.
type ImageGenerator struct {
	svc       ImageService
	gate      *Gate
	downloads *storage.FileStore

	mu     sync.Mutex
	result *domain.AssetResult
}

func NewImageGenerator(svc ImageService, gate *Gate, downloads *storage.FileStore) *ImageGenerator {
	return &ImageGenerator{svc: svc, gate: gate, downloads: downloads}
}

// Generate renders prompt at aspectRatio and keeps the result for download.
// The previous result is released as soon as a new request starts.
func (g *ImageGenerator) Generate(ctx context.Context, prompt, aspectRatio string) (*domain.AssetResult, error) {
	const op = "generate image"
	if err := g.gate.Check(op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.InvalidInput(op, "Please enter a prompt to generate an image.")
	}
	g.mu.Lock()
	g.result = nil
	g.mu.Unlock()

	res, err := g.svc.GenerateImage(ctx, prompt, aspectRatio)
	if err != nil {
		return nil, present(op, "Failed to generate image. Please try again.", g.gate.Observe(err))
	}
	res.Filename = assets.SuggestedFilename(domain.AssetKindImage)
	saveCopy(ctx, g.downloads, res, g.gate.logger)

	g.mu.Lock()
	g.result = res
	g.mu.Unlock()
	return res, nil
}

// Result returns the last generated image, if any.
func (g *ImageGenerator) Result() *domain.AssetResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

// ImageEditor is the instruction-based edit tab.
type ImageEditor struct {
	svc       ImageService
	gate      *Gate
	downloads *storage.FileStore

	mu     sync.Mutex
	result *domain.AssetResult
}

func NewImageEditor(svc ImageService, gate *Gate, downloads *storage.FileStore) *ImageEditor {
	return &ImageEditor{svc: svc, gate: gate, downloads: downloads}
}

// Edit applies prompt to img.
func (e *ImageEditor) Edit(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error) {
	const op = "edit image"
	if err := e.gate.Check(op); err != nil {
		return nil, err
	}
	if img.Empty() || strings.TrimSpace(prompt) == "" {
		return nil, domain.InvalidInput(op, "Please upload an image and provide an editing prompt.")
	}
	e.mu.Lock()
	e.result = nil
	e.mu.Unlock()

	res, err := e.svc.EditImage(ctx, img, prompt)
	if err != nil {
		return nil, present(op, "Failed to edit image. Please try again.", e.gate.Observe(err))
	}
	res.Filename = assets.SuggestedFilename(domain.AssetKindEditedImage)
	saveCopy(ctx, e.downloads, res, e.gate.logger)

	e.mu.Lock()
	e.result = res
	e.mu.Unlock()
	return res, nil
}

// Result returns the last edited image, if any.
func (e *ImageEditor) Result() *domain.AssetResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// ImageAnalyzer is the image question-answering tab.
type ImageAnalyzer struct {
	svc  ImageService
	gate *Gate

	mu     sync.Mutex
	answer string
}

func NewImageAnalyzer(svc ImageService, gate *Gate) *ImageAnalyzer {
	return &ImageAnalyzer{svc: svc, gate: gate}
}

// Analyze asks prompt about img. An empty prompt uses DefaultAnalyzePrompt.
func (a *ImageAnalyzer) Analyze(ctx context.Context, img *domain.InputImage, prompt string) (string, error) {
	const op = "analyze image"
	if err := a.gate.Check(op); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultAnalyzePrompt
	}
	if img.Empty() {
		return "", domain.InvalidInput(op, "Please upload an image and provide a question or prompt.")
	}
	answer, err := a.svc.AnalyzeImage(ctx, img, prompt)
	if err != nil {
		return "", present(op, "Failed to analyze image. Please try again.", a.gate.Observe(err))
	}
	a.mu.Lock()
	a.answer = answer
	a.mu.Unlock()
	return answer, nil
}

// Answer returns the last analysis text.
func (a *ImageAnalyzer) Answer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answer
}

// copyPrefix keeps saved copies sortable by time and distinct within the
// same second.
func copyPrefix(now time.Time) string {
	return now.UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// saveCopy mirrors res into the download directory when one is configured.
// A failed copy does not fail the request.
func saveCopy(ctx context.Context, downloads *storage.FileStore, res *domain.AssetResult, logger *infra.Logger) {
	if !downloads.Enabled() || res == nil {
		return
	}
	path, err := downloads.Save(ctx, copyPrefix(time.Now()), res)
	if err != nil {
		logger.Warn().Err(err).Str("kind", string(res.Kind)).Msg("studio: save download copy failed")
		return
	}
	logger.Debug().Str("path", path).Msg("studio: saved download copy")
}
