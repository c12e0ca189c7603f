package certificate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"golang.org/x/text/cases"

	"github.com/tbourn/go-pledge-backend/internal/localize"
)

// ErrUnsupportedFormat is returned when a template cannot be encoded in the
// requested format (document templates are PDF only).
var ErrUnsupportedFormat = errors.New("unsupported certificate format")

// Format is an output encoding.
type Format string

// Output formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatPDF  Format = "pdf"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 0.9

// ParseFormat accepts png, jpeg, jpg and pdf; empty selects PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Ext is the file extension, without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPDF:
		return "application/pdf"
	}
	return "image/png"
}

// jpegQuality maps a quality in [0,1] to the encoder's 1..100 range.
func jpegQuality(q float64) int {
	if q <= 0 || math.IsNaN(q) {
		q = DefaultQuality
	}
	if q > 1 {
		q = 1
	}
	n := int(math.Round(q * 100))
	if n < 1 {
		n = 1
	}
	return n
}

// Options select the template and encoding of one generation.
type Options struct {
	Template Kind
	Format   Format
	// Scale multiplies the raster template size; 0 means 1.
	Scale float64
	// Quality in [0,1] applies to JPEG; 0 means DefaultQuality.
	Quality float64
}

// Presets.
var (
	// SocialPreset balances size and sharpness for sharing.
	SocialPreset = Options{Template: KindRaster, Format: FormatJPEG, Scale: 1.5, Quality: 0.85}
	// HighQualityPreset is a lossless double-size render.
	HighQualityPreset = Options{Template: KindRaster, Format: FormatPNG, Scale: 2, Quality: 1}
	// PrintPreset is the document template as PDF.
	PrintPreset = Options{Template: KindDocument, Format: FormatPDF}
)

// Preset looks up a preset by name.
func Preset(name string) (Options, bool) {
	switch strings.ToLower(name) {
	case "social":
		return SocialPreset, true
	case "high", "high-quality", "highquality":
		return HighQualityPreset, true
	case "print":
		return PrintPreset, true
	}
	return Options{}, false
}

// Artifact is an encoded certificate.
type Artifact struct {
	Data        []byte
	FileName    string
	ContentType string
	Format      Format
}

// encodeRaster encodes a composited canvas.
func encodeRaster(img image.Image, f Format, quality float64, pdf func(image.Image) ([]byte, error)) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality))); err != nil {
			return nil, err
		}
	case FormatPDF:
		return pdf(img)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	return buf.Bytes(), nil
}

// FileName derives the download name of a certificate.
func FileName(name, pledgeID string, lang localize.Lang, f Format) string {
	prefix := "certificate"
	if lang == localize.Hindi {
		prefix = "praman-patra"
	}
	slug := cases.Lower(lang.Tag()).String(strings.TrimSpace(name))
	slug = strings.Join(strings.FieldsFunc(slug, unicode.IsSpace), "-")
	id := pledgeID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s.%s", prefix, slug, id, f.Ext())
}
