// Package raster converts PDF pages into encoded images sized for
// vision models.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// Config controls rasterization output.
type Config struct {
	// DPI for page rendering (default: 300).
	DPI int
	// MaxWidth / MaxHeight clamp the output image; resizing preserves
	// aspect ratio (default: 4000, the strictest provider limit).
	MaxWidth  int
	MaxHeight int
	// Format is "jpeg" or "png" (default: jpeg).
	Format string
	// JPEGQuality 1-100 (default: 85).
	JPEGQuality int
}

// DefaultConfig returns the standard rasterization settings.
func DefaultConfig() Config {
	return Config{
		DPI:         300,
		MaxWidth:    4000,
		MaxHeight:   4000,
		Format:      "jpeg",
		JPEGQuality: 85,
	}
}

// PageImage is one rendered page.
type PageImage struct {
	Page   int    // 1-indexed
	Width  int    // pixels after clamping
	Height int
	MIME   string
	Data   []byte
}

// Base64 returns the image bytes base64-encoded.
func (p PageImage) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURI returns a data URI suitable for an image_url message part.
func (p PageImage) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MIME, p.Base64())
}

// Rasterizer renders PDF pages to images.
type Rasterizer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a rasterizer.
func New(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 4000
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 4000
	}
	if cfg.Format == "" {
		cfg.Format = "jpeg"
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 85
	}
	return &Rasterizer{cfg: cfg, logger: logger}
}

// Render rasterizes pages firstPage..lastPage (1-indexed, inclusive;
// 0 means the document bounds). The document handle is not safe for
// concurrent use, so pages render sequentially.
func (r *Rasterizer) Render(ctx context.Context, path string, firstPage, lastPage int) ([]PageImage, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, errors.InputNotFound(path, err)
	}
	defer func() { _ = doc.Close() }()

	total := doc.NumPage()
	if firstPage < 1 {
		firstPage = 1
	}
	if lastPage < 1 || lastPage > total {
		lastPage = total
	}

	var out []PageImage
	for n := firstPage; n <= lastPage; n++ {
		if err := ctx.Err(); err != nil {
			return out, errors.Cancelled(err)
		}

		img, err := doc.ImageDPI(n-1, float64(r.cfg.DPI))
		if err != nil {
			return out, errors.New(errors.ErrCodeRasterFailed,
				fmt.Sprintf("failed to render page %d", n), err).
				WithDetail("path", path)
		}

		clamped := clampImage(img, r.cfg.MaxWidth, r.cfg.MaxHeight)
		encoded, mime, err := r.encode(clamped)
		if err != nil {
			return out, errors.New(errors.ErrCodeRasterFailed,
				fmt.Sprintf("failed to encode page %d", n), err)
		}

		bounds := clamped.Bounds()
		out = append(out, PageImage{
			Page:   n,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			MIME:   mime,
			Data:   encoded,
		})
	}

	r.logger.Debug("rasterization complete",
		slog.String("path", path),
		slog.Int("pages", len(out)),
		slog.Int("dpi", r.cfg.DPI))
	return out, nil
}

// RenderAll rasterizes the whole document.
func (r *Rasterizer) RenderAll(ctx context.Context, path string) ([]PageImage, error) {
	return r.Render(ctx, path, 0, 0)
}

func (r *Rasterizer) encode(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	switch r.cfg.Format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.cfg.JPEGQuality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

// clampImage scales img down to fit maxW x maxH, preserving aspect
// ratio. Images already within bounds pass through untouched.
func clampImage(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
