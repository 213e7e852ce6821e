package studio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"spritestudio/internal/assets"
	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
	"spritestudio/internal/sprite"
	"spritestudio/pkg/zip"
)

const (
	DefaultFrameCount      = 4
	DefaultAnimationPrompt = "side-scrolling walk cycle"

	// SheetErrorMessage is shown when frames arrived but could not be
	// composited. The frames stay available.
	SheetErrorMessage = "Could not generate downloadable sprite sheet."
)

// SpriteResult is what the sprite tab renders after a generation.
type SpriteResult struct {
	Frames   []domain.AssetResult
	Sheet    *domain.AssetResult
	SheetErr string
}

// SpriteGenerator is the sprite sheet tab: an optional reference step from a
// character name, then frame generation and compositing.
type SpriteGenerator struct {
	svc        ImageService
	gate       *Gate
	frameCount int
	logger     *infra.Logger

	mu        sync.Mutex
	reference *domain.InputImage
	result    *SpriteResult
}

func NewSpriteGenerator(svc ImageService, gate *Gate, frameCount int, logger *infra.Logger) *SpriteGenerator {
	if frameCount <= 0 {
		frameCount = DefaultFrameCount
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &SpriteGenerator{svc: svc, gate: gate, frameCount: frameCount, logger: logger}
}

// ReferencePrompt is the text-to-image prompt for a character reference.
func ReferencePrompt(characterName string) string {
	return fmt.Sprintf("Full body shot of a video game character named \"%s\", side view, simple style for sprite sheet animation, on a solid neutral background.", characterName)
}

// GenerateReference renders a square reference image for characterName and
// keeps it as the input for Generate.
func (g *SpriteGenerator) GenerateReference(ctx context.Context, characterName string) (*domain.AssetResult, error) {
	const op = "generate sprite reference"
	if err := g.gate.Check(op); err != nil {
		return nil, err
	}
	characterName = strings.TrimSpace(characterName)
	if characterName == "" {
		return nil, domain.InvalidInput(op, "Please enter a character name.")
	}
	res, err := g.svc.GenerateImage(ctx, ReferencePrompt(characterName), "1:1")
	if err != nil {
		return nil, present(op, "Failed to generate reference image. Please try again.", g.gate.Observe(err))
	}
	res.Filename = "sprite-reference" + extensionForMIME(res.MIMEType)

	g.mu.Lock()
	g.reference = &domain.InputImage{Filename: res.Filename, MIMEType: res.MIMEType, Data: res.Data}
	g.mu.Unlock()
	return res, nil
}

// SetReference replaces the reference image with an upload.
func (g *SpriteGenerator) SetReference(img *domain.InputImage) {
	g.mu.Lock()
	g.reference = img
	g.mu.Unlock()
}

// Reference returns the current reference image.
func (g *SpriteGenerator) Reference() *domain.InputImage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reference
}

// Generate requests the animation frames for reference, or the stored
// reference when nil, and composites them into a sheet. A compositing
// failure is reported in SheetErr and does not discard the frames.
func (g *SpriteGenerator) Generate(ctx context.Context, reference *domain.InputImage, animationPrompt string) (*SpriteResult, error) {
	const op = "generate sprite sheet"
	if err := g.gate.Check(op); err != nil {
		return nil, err
	}
	if reference.Empty() {
		reference = g.Reference()
	} else {
		g.SetReference(reference)
	}
	if strings.TrimSpace(animationPrompt) == "" {
		animationPrompt = DefaultAnimationPrompt
	}
	if reference.Empty() {
		return nil, domain.InvalidInput(op, "Please provide a reference image and an animation description.")
	}

	g.mu.Lock()
	g.result = nil
	g.mu.Unlock()

	frames, err := g.svc.GenerateSpriteFrames(ctx, reference, animationPrompt, g.frameCount)
	if err != nil {
		return nil, present(op, "Failed to generate sprites. Please check your inputs and try again.", g.gate.Observe(err))
	}

	result := &SpriteResult{Frames: frames}
	encoded := make([][]byte, len(frames))
	for i := range frames {
		encoded[i] = frames[i].Data
	}
	sheet, err := sprite.BuildSheet(ctx, encoded)
	if err != nil {
		g.logger.Warn().Err(err).Int("frames", len(frames)).Msg("studio: sprite sheet compositing failed")
		result.SheetErr = SheetErrorMessage
	} else {
		result.Sheet = &domain.AssetResult{
			Kind:     domain.AssetKindSpriteSheet,
			MIMEType: "image/png",
			Data:     sheet,
			Filename: assets.SuggestedFilename(domain.AssetKindSpriteSheet),
		}
	}

	g.mu.Lock()
	g.result = result
	g.mu.Unlock()
	return result, nil
}

// Result returns the last generation.
func (g *SpriteGenerator) Result() *SpriteResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

// Frame returns frame index of the last generation.
func (g *SpriteGenerator) Frame(index int) (*domain.AssetResult, error) {
	res := g.Result()
	if res == nil || index < 0 || index >= len(res.Frames) {
		return nil, domain.InvalidInput("get sprite frame", "no such frame")
	}
	frame := res.Frames[index]
	return &frame, nil
}

// Archive zips every frame plus the sheet when one exists.
func (g *SpriteGenerator) Archive() ([]byte, error) {
	const op = "archive sprites"
	res := g.Result()
	if res == nil || len(res.Frames) == 0 {
		return nil, domain.InvalidInput(op, "no sprites generated yet")
	}
	entries := make([]zip.Entry, 0, len(res.Frames)+1)
	for _, frame := range res.Frames {
		entries = append(entries, zip.Entry{Filename: frame.Filename, Data: frame.Data})
	}
	if res.Sheet != nil {
		entries = append(entries, zip.Entry{Filename: res.Sheet.Filename, Data: res.Sheet.Data})
	}
	data, err := zip.Archive(entries, time.Now())
	if err != nil {
		return nil, domain.NewError(domain.KindService, op, "could not build archive", err)
	}
	return data, nil
}

func extensionForMIME(mime string) string {
	if strings.Contains(mime, "jpeg") || strings.Contains(mime, "jpg") {
		return ".jpg"
	}
	return ".png"
}
