// Package sprite assembles animation frames into a horizontal sprite sheet.
package sprite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/sync/errgroup"
)

var (
	ErrNoFrames      = errors.New("sprite: no frames to compose")
	ErrZeroDimension = errors.New("sprite: frame has zero width or height")
	ErrFrameMismatch = errors.New("sprite: frames differ in size")
)

// DecodeFrames decodes every encoded frame concurrently. The result keeps the
// input order; any failure fails the whole batch.
func DecodeFrames(ctx context.Context, frames [][]byte) ([]image.Image, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	decoded := make([]image.Image, len(frames))
	g, ctx := errgroup.WithContext(ctx)
	for i, data := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("sprite: decode frame %d: %w", i, err)
			}
			decoded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decoded, nil
}

// Compose lays frames out left to right. The sheet is as tall as one frame
// and as wide as all of them; frame i occupies columns [w*i, w*i+w). The
// sheet stores non-premultiplied colour so translucent pixels survive PNG
// encoding unchanged.
func Compose(frames []image.Image) (*image.NRGBA, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	first := frames[0].Bounds()
	w, h := first.Dx(), first.Dy()
	if w == 0 || h == 0 {
		return nil, ErrZeroDimension
	}
	for i, frame := range frames[1:] {
		b := frame.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, fmt.Errorf("%w: frame %d is %dx%d, want %dx%d", ErrFrameMismatch, i+1, b.Dx(), b.Dy(), w, h)
		}
	}

	sheet := image.NewNRGBA(image.Rect(0, 0, w*len(frames), h))
	for i, frame := range frames {
		copyFrame(sheet, w*i, frame)
	}
	return sheet, nil
}

// copyFrame writes frame into sheet starting at column x0.
func copyFrame(sheet *image.NRGBA, x0 int, frame image.Image) {
	b := frame.Bounds()
	if src, ok := frame.(*image.NRGBA); ok {
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			from := src.PixOffset(b.Min.X, b.Min.Y+y)
			to := sheet.PixOffset(x0, y)
			copy(sheet.Pix[to:to+rowLen], src.Pix[from:from+rowLen])
		}
		return
	}
	// NRGBAModel passes NRGBA palette entries through untouched and only
	// converts premultiplied colours.
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			sheet.Set(x0+x, y, frame.At(b.Min.X+x, b.Min.Y+y))
		}
	}
}

// EncodePNG serialises img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("sprite: encode sheet: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildSheet decodes, composes and encodes frames in one step.
func BuildSheet(ctx context.Context, frames [][]byte) ([]byte, error) {
	decoded, err := DecodeFrames(ctx, frames)
	if err != nil {
		return nil, err
	}
	sheet, err := Compose(decoded)
	if err != nil {
		return nil, err
	}
	return EncodePNG(sheet)
}

// Dimensions returns the pixel size of an encoded image, zero when the bytes
// cannot be decoded.
func Dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
