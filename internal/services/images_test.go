package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/masad-stock/skillbridge-sub000/internal/data/repos/testutil"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// noisyPNG builds an incompressible PNG comfortably over every tier budget.
func noisyPNG(t *testing.T, side int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode noise png: %v", err)
	}
	return buf.Bytes()
}

func TestTranscodeShrinksOversizedImage(t *testing.T) {
	tc := newImageTranscoder(testutil.Logger(t))
	src := noisyPNG(t, 400)
	if len(src) <= targetBytesLow {
		t.Fatalf("test image too small to exercise transcoding: %d bytes", len(src))
	}

	out, contentType, optimized, err := tc.Transcode(src, "image/png", types.QualityLow)
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if !optimized {
		t.Fatalf("oversized image not marked optimized")
	}
	if contentType != "image/jpeg" {
		t.Fatalf("content type: want=image/jpeg got=%q", contentType)
	}
	if len(out) >= len(src) {
		t.Fatalf("output not smaller: src=%d out=%d", len(src), len(out))
	}
	// JPEG magic bytes.
	if len(out) < 2 || out[0] != 0xFF || out[1] != 0xD8 {
		t.Fatalf("output is not a JPEG: % X", out[:2])
	}
}

func TestTranscodePassesThroughInBudgetImage(t *testing.T) {
	tc := newImageTranscoder(testutil.Logger(t))
	src := noisyPNG(t, 40)
	if len(src) > targetBytesMedium {
		t.Fatalf("small test image unexpectedly over budget: %d bytes", len(src))
	}

	out, contentType, optimized, err := tc.Transcode(src, "image/png", types.QualityMedium)
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if optimized {
		t.Fatalf("in-budget image should pass through untouched")
	}
	if contentType != "image/png" {
		t.Fatalf("content type changed: %q", contentType)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("bytes changed for in-budget image")
	}
}

func TestTranscodeRejectsGarbage(t *testing.T) {
	tc := newImageTranscoder(testutil.Logger(t))

	garbage := make([]byte, targetBytesHigh+1)
	if _, _, _, err := tc.Transcode(garbage, "image/png", types.QualityHigh); err == nil {
		t.Fatalf("want decode error for garbage input")
	}
}

func TestTierBudgetsAndScaleFactors(t *testing.T) {
	cases := []struct {
		quality types.ImageQuality
		bytes   int
		scale   float64
	}{
		{types.QualityLow, 50 * 1024, 0.5},
		{types.QualityMedium, 150 * 1024, 0.7},
		{types.QualityHigh, 300 * 1024, 0.9},
		// Unknown tiers fall back to medium.
		{types.ImageQuality("ultra"), 150 * 1024, 0.7},
	}
	for _, tc := range cases {
		if got := targetBytesFor(tc.quality); got != tc.bytes {
			t.Fatalf("target for %q: want=%d got=%d", tc.quality, tc.bytes, got)
		}
		if got := scaleFactorFor(tc.quality); got != tc.scale {
			t.Fatalf("scale for %q: want=%v got=%v", tc.quality, tc.scale, got)
		}
	}
}
