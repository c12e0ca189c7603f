package storage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestCompressSelfie_DownscalesLongestSide(t *testing.T) {
	out, err := CompressSelfie(testPNG(t, 1400, 700), SelfieMaxSide, SelfieQuality)
	if err != nil {
		t.Fatalf("CompressSelfie: %v", err)
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode webp: %v", err)
	}
	if cfg.Width != 700 || cfg.Height != 350 {
		t.Fatalf("size = %dx%d, want 700x350", cfg.Width, cfg.Height)
	}
}

func TestCompressSelfie_SmallImageKeepsSize(t *testing.T) {
	out, err := CompressSelfie(testPNG(t, 120, 200), SelfieMaxSide, SelfieQuality)
	if err != nil {
		t.Fatalf("CompressSelfie: %v", err)
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(out))
	if err != nil || cfg.Width != 120 || cfg.Height != 200 {
		t.Fatalf("config = (%+v, %v)", cfg, err)
	}
}

func TestCompressSelfie_RejectsUnknownBytes(t *testing.T) {
	if _, err := CompressSelfie([]byte("not an image"), SelfieMaxSide, SelfieQuality); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}
