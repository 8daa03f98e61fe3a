package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	// decoders
	_ "image/gif"
	_ "image/png"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ThumbnailSize is the longest edge of generated thumbnails.
const ThumbnailSize = 256

// maxThumbnailPixels bounds the decoded size of a source image.
const maxThumbnailPixels = 50_000_000

// Thumbnail returns a JPEG thumbnail of the image at r.
func (m *Manager) Thumbnail(ctx context.Context, r Resolved) ([]byte, error) {
	_, span := m.tracer.Start(ctx, "thumbnail")
	defer span.End()

	span.SetAttributes(attribute.String("path", r.Rel))

	info, err := os.Stat(r.Abs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !info.Mode().IsRegular() || !IsImage(r.Abs) {
		return nil, fmt.Errorf("%s: %w", r.Rel, ErrNotImage)
	}

	key := fmt.Sprintf("%s@%d", r.Abs, info.ModTime().UnixNano())
	if cached, ok := m.thumbs.Get(key); ok {
		return cached.([]byte), nil
	}

	data, err := makeThumb(r.Abs, ThumbnailSize)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create thumbnail of %s: %w", r.Rel, err)
	}
	m.thumbs.Add(key, data)
	return data, nil
}

func makeThumb(absPath string, max int) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, os.ErrInvalid
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxThumbnailPixels {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, os.ErrInvalid
	}

	nw, nh := w, h
	if w > h && w > max {
		nw = max
		nh = h * max / w
	} else if h >= w && h > max {
		nh = max
		nw = w * max / h
	}
	nw = maxInt(nw, 1)
	nh = maxInt(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
