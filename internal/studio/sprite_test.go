package studio

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"spritestudio/internal/domain"
)

func spriteFrames(t *testing.T, sizes ...int) []domain.AssetResult {
	t.Helper()
	frames := make([]domain.AssetResult, len(sizes))
	for i, size := range sizes {
		frames[i] = domain.AssetResult{
			Kind:     domain.AssetKindSpriteFrame,
			MIMEType: "image/png",
			Data:     pngBytes(t, size, size, color.RGBA{R: uint8(40 * i), A: 255}),
			Filename: "sprite-0" + string(rune('1'+i)) + ".png",
		}
	}
	return frames
}

func TestSpriteGenerateComposesSheet(t *testing.T) {
	var gotCount int
	var gotPrompt string
	svc := &fakeService{
		spriteFrames: func(_ context.Context, _ *domain.InputImage, prompt string, n int) ([]domain.AssetResult, error) {
			gotCount, gotPrompt = n, prompt
			return spriteFrames(t, 64, 64, 64, 64), nil
		},
	}
	s := newTestStudio(t, svc, nil, keyedStore(t))

	res, err := s.Sprite.Generate(context.Background(), sampleImage, "")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if gotCount != DefaultFrameCount || gotPrompt != DefaultAnimationPrompt {
		t.Fatalf("unexpected request %d %q", gotCount, gotPrompt)
	}
	if res.Sheet == nil || res.SheetErr != "" {
		t.Fatalf("expected sheet, got err %q", res.SheetErr)
	}
	img, err := png.Decode(bytes.NewReader(res.Sheet.Data))
	if err != nil {
		t.Fatalf("decode sheet: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 64 {
		t.Fatalf("unexpected sheet bounds %v", b)
	}
	if res.Sheet.Filename != "sprite-sheet.png" {
		t.Fatalf("unexpected sheet filename %s", res.Sheet.Filename)
	}
	frame, err := s.Sprite.Frame(2)
	if err != nil || frame.Filename != "sprite-03.png" {
		t.Fatalf("Frame(2) = %+v, %v", frame, err)
	}
	if _, err := s.Sprite.Frame(4); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

func TestSpriteSheetFailureKeepsFrames(t *testing.T) {
	svc := &fakeService{
		spriteFrames: func(context.Context, *domain.InputImage, string, int) ([]domain.AssetResult, error) {
			return spriteFrames(t, 64, 32), nil
		},
	}
	s := newTestStudio(t, svc, nil, keyedStore(t))
	res, err := s.Sprite.Generate(context.Background(), sampleImage, "jump")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if res.Sheet != nil || res.SheetErr != SheetErrorMessage {
		t.Fatalf("expected sheet error, got %+v", res)
	}
	if len(res.Frames) != 2 {
		t.Fatalf("frames must be kept, got %d", len(res.Frames))
	}
}

func TestSpriteReferenceFeedsGenerate(t *testing.T) {
	var refPrompt, refAspect string
	var usedRef *domain.InputImage
	svc := &fakeService{
		generateImage: func(_ context.Context, prompt, aspect string) (*domain.AssetResult, error) {
			refPrompt, refAspect = prompt, aspect
			return &domain.AssetResult{Kind: domain.AssetKindImage, MIMEType: "image/jpeg", Data: []byte("ref")}, nil
		},
		spriteFrames: func(_ context.Context, ref *domain.InputImage, _ string, _ int) ([]domain.AssetResult, error) {
			usedRef = ref
			return spriteFrames(t, 8, 8, 8, 8), nil
		},
	}
	s := newTestStudio(t, svc, nil, keyedStore(t))
	if _, err := s.Sprite.GenerateReference(context.Background(), " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := s.Sprite.Generate(context.Background(), nil, "walk"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without reference, got %v", err)
	}

	ref, err := s.Sprite.GenerateReference(context.Background(), "Knight")
	if err != nil {
		t.Fatalf("GenerateReference error: %v", err)
	}
	if refAspect != "1:1" || !strings.Contains(refPrompt, `named "Knight"`) {
		t.Fatalf("unexpected reference request %q %s", refPrompt, refAspect)
	}
	if ref.Filename != "sprite-reference.jpg" {
		t.Fatalf("unexpected reference filename %s", ref.Filename)
	}
	if _, err := s.Sprite.Generate(context.Background(), nil, "walk"); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if usedRef == nil || string(usedRef.Data) != "ref" {
		t.Fatalf("stored reference not used: %+v", usedRef)
	}
}

func TestSpriteArchive(t *testing.T) {
	svc := &fakeService{
		spriteFrames: func(context.Context, *domain.InputImage, string, int) ([]domain.AssetResult, error) {
			return spriteFrames(t, 8, 8, 8, 8), nil
		},
	}
	s := newTestStudio(t, svc, nil, keyedStore(t))
	if _, err := s.Sprite.Archive(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected error before generation, got %v", err)
	}
	if _, err := s.Sprite.Generate(context.Background(), sampleImage, "walk"); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	data, err := s.Sprite.Archive()
	if err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 5 || zr.File[4].Name != "sprite-sheet.png" {
		t.Fatalf("unexpected archive entries %d", len(zr.File))
	}
}
