// Package imaging downloads cover images, rejects unusable ones, trims the
// watermark strip at the bottom and stores them as JPEG.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/jonathan/repackr/internal/fetch"
)

const (
	MinWidth  = 250
	MinHeight = 150
	// MinRetainedHeight is the smallest height a crop may leave behind.
	MinRetainedHeight = 200
	JPEGQuality       = 90
	// MaxDimension bounds either side before pixels are decoded.
	MaxDimension = 10000
)

var (
	ErrNotImage = errors.New("response is not an image")
	ErrTooSmall = errors.New("image below minimum size")
	ErrTooLarge = errors.New("image dimensions too large")
)

// CropHeight returns the number of rows to cut from the bottom of an image
// of height h. Taller previews carry taller watermark strips.
func CropHeight(h int) int {
	switch {
	case h > 500:
		return 110
	case h > 400:
		return 90
	case h > 300:
		return 70
	default:
		return 45
	}
}

// ShouldCrop reports whether cropping still leaves MinRetainedHeight rows.
func ShouldCrop(h int) bool {
	return h-CropHeight(h) >= MinRetainedHeight
}

// ImageFetcher downloads image bytes. *fetch.Fetcher satisfies it.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url, referer string, check fetch.ImageCheck) ([]byte, string, error)
}

// Processor turns cover image URLs into local JPEG files.
type Processor struct {
	images ImageFetcher
	logger *slog.Logger
	now    func() time.Time
	seq    atomic.Int64
}

// NewProcessor creates a Processor.
func NewProcessor(images ImageFetcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{images: images, logger: logger, now: time.Now}
}

// FetchAndCrop downloads imageURL and writes the processed cover into
// workDir. It returns ("", false) on any failure; a missing cover is never
// an error for the caller.
func (p *Processor) FetchAndCrop(ctx context.Context, imageURL, workDir, referer string) (string, bool) {
	logger := p.logger.With("image_url", imageURL)
	if workDir == "" || imageURL == "" {
		return "", false
	}

	data, contentType, err := p.images.FetchImage(ctx, imageURL, referer, Check)
	if err != nil {
		logger.Warn("cover download failed", "error", err)
		return "", false
	}

	img, err := Prepare(data, contentType)
	if err != nil {
		logger.Warn("cover rejected", "error", err)
		return "", false
	}

	name := fmt.Sprintf("cover_%d_%d.jpg", p.now().UnixNano(), p.seq.Add(1))
	path := filepath.Join(workDir, name)
	if err := writeJPEG(path, img); err != nil {
		logger.Warn("cover save failed", "error", err)
		return "", false
	}

	logger.Info("cover saved", "path", path, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return path, true
}

// Check reads only the image header: the body must be a decodable format
// whose dimensions lie within MinWidth x MinHeight and MaxDimension.
func Check(data []byte, contentType string) error {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") {
		return fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return fmt.Errorf("%w: %s %dx%d", ErrTooLarge, format, cfg.Width, cfg.Height)
	}
	if cfg.Width < MinWidth || cfg.Height < MinHeight {
		return fmt.Errorf("%w: %s %dx%d", ErrTooSmall, format, cfg.Width, cfg.Height)
	}
	return nil
}

// Prepare decodes data, enforces the size bounds, crops the watermark strip
// and flattens the result onto white.
func Prepare(data []byte, contentType string) (*image.RGBA, error) {
	if err := Check(data, contentType); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	keep := h
	if ShouldCrop(h) {
		keep = h - CropHeight(h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, keep))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst, nil
}

func writeJPEG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return err
	}
	return out.Close()
}
