package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	_ "image/gif"

	"golang.org/x/image/draw"

	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// Per-quality byte targets for downloaded images. Anything already at or
// under target is stored untouched.
const (
	targetBytesLow    = 50 * 1024
	targetBytesMedium = 150 * 1024
	targetBytesHigh   = 300 * 1024
)

const (
	encodeStartQuality = 90
	encodeQualityStep  = 15
	encodeMaxAttempts  = 5
	// Accept a result within 20% over target rather than degrading further.
	encodeTolerance = 1.2
)

func targetBytesFor(quality types.ImageQuality) int {
	switch quality {
	case types.QualityLow:
		return targetBytesLow
	case types.QualityHigh:
		return targetBytesHigh
	default:
		return targetBytesMedium
	}
}

func scaleFactorFor(quality types.ImageQuality) float64 {
	switch quality {
	case types.QualityLow:
		return 0.5
	case types.QualityHigh:
		return 0.9
	default:
		return 0.7
	}
}

// imageTranscoder shrinks course images to fit a quality tier's byte target.
type imageTranscoder struct {
	log *logger.Logger
}

func newImageTranscoder(baseLog *logger.Logger) *imageTranscoder {
	return &imageTranscoder{log: baseLog.With("service", "image_transcoder")}
}

// Transcode re-encodes src to fit the tier's byte budget. It returns the
// encoded bytes, the resulting content type, and whether the image was
// actually modified. Sources already within budget pass through unchanged.
func (t *imageTranscoder) Transcode(src []byte, srcContentType string, quality types.ImageQuality) ([]byte, string, bool, error) {
	target := targetBytesFor(quality)
	if len(src) <= target {
		return src, srcContentType, false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", false, fmt.Errorf("decode image: %w", err)
	}

	scaled := t.scale(img, scaleFactorFor(quality))

	out, contentType, err := t.encodeToTarget(scaled, target)
	if err != nil {
		return nil, "", false, err
	}
	// Re-encoding a small, already-efficient source can inflate it.
	if len(out) >= len(src) {
		return src, srcContentType, false, nil
	}
	t.log.Debug("image transcoded",
		"quality", quality, "original_bytes", len(src), "optimized_bytes", len(out), "content_type", contentType)
	return out, contentType, true, nil
}

func (t *imageTranscoder) scale(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	w := int(math.Round(float64(bounds.Dx()) * factor))
	h := int(math.Round(float64(bounds.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// encodeToTarget walks JPEG quality down until the output fits within the
// tolerance band around target, keeping the best attempt. PNG is the
// fallback when JPEG encoding itself fails.
func (t *imageTranscoder) encodeToTarget(img image.Image, target int) ([]byte, string, error) {
	acceptable := int(float64(target) * encodeTolerance)
	var best []byte
	quality := encodeStartQuality
	for attempt := 0; attempt < encodeMaxAttempts && quality > 0; attempt++ {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return t.encodePNGFallback(img)
		}
		out := buf.Bytes()
		if best == nil || len(out) < len(best) {
			best = out
		}
		if len(out) <= acceptable {
			return out, "image/jpeg", nil
		}
		quality -= encodeQualityStep
	}
	if best != nil {
		return best, "image/jpeg", nil
	}
	return t.encodePNGFallback(img)
}

func (t *imageTranscoder) encodePNGFallback(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png fallback: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
