package exif

import (
	"bytes"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// Apply returns img transformed so that it displays upright for the given
// orientation. Normal and Unknown return img unchanged.
func Apply(img image.Image, o Orientation) image.Image {
	switch o {
	case FlipH:
		return imaging.FlipH(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case FlipV:
		return imaging.FlipV(img)
	case Transpose:
		return imaging.Transpose(img)
	case Rotate90CW:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img)
	case Transverse:
		return imaging.Transverse(img)
	case Rotate270CW:
		return imaging.Rotate90(img)
	}
	return img
}

// Result is the outcome of Corrector.Correct.
type Result struct {
	Data        []byte
	ContentType string
	// Orientation is the tag found in the input, Unknown if none was read.
	Orientation Orientation
	// Corrected is true when Data was re-encoded upright.
	Corrected bool
}

// DecodeFunc decodes an image honoring its EXIF orientation.
type DecodeFunc func(r io.Reader) (image.Image, error)

// Corrector normalizes selfie orientation.
//
// It first tries Native, an orientation-aware decoder. If that is unset or
// fails it parses the orientation tag itself and applies the transform to a
// plain decode. Correct never fails: on any error the input is returned as is.
type Corrector struct {
	Native DecodeFunc
	Logger zerolog.Logger
}

// NewCorrector returns a Corrector that uses imaging's auto-orientation as
// the native decoder.
func NewCorrector(lg zerolog.Logger) *Corrector {
	return &Corrector{
		Native: func(r io.Reader) (image.Image, error) {
			return imaging.Decode(r, imaging.AutoOrientation(true))
		},
		Logger: lg,
	}
}

// Correct returns data re-encoded upright as PNG when it is a JPEG, and data
// unchanged otherwise.
func (c *Corrector) Correct(data []byte) Result {
	orig := Result{Data: data, ContentType: http.DetectContentType(data)}
	if !IsJPEG(data) {
		return orig
	}

	o, err := ReadOrientation(data)
	if err != nil {
		c.Logger.Debug().Err(err).Msg("exif orientation not read")
	}
	orig.Orientation = o

	if c.Native != nil {
		img, err := c.Native(bytes.NewReader(data))
		switch {
		case err != nil:
			c.Logger.Debug().Err(err).Msg("native orientation decode failed")
		case !isUpright(img, data, o):
			c.Logger.Debug().Stringer("orientation", o).Msg("native decode ignored orientation; rotating manually")
		default:
			if out, err := encodePNG(img); err == nil {
				return Result{Data: out, ContentType: "image/png", Orientation: o, Corrected: true}
			}
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		c.Logger.Warn().Err(err).Msg("selfie decode failed; using original bytes")
		return orig
	}
	out, err := encodePNG(Apply(img, o))
	if err != nil {
		c.Logger.Warn().Err(err).Msg("selfie re-encode failed; using original bytes")
		return orig
	}
	return Result{Data: out, ContentType: "image/png", Orientation: o, Corrected: true}
}

// isUpright reports whether img has the dimensions the stored frame takes
// once o is applied. It answers true when the frame size cannot be read.
func isUpright(img image.Image, data []byte, o Orientation) bool {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return true
	}
	w, h := cfg.Width, cfg.Height
	if o.SwapsAxes() {
		w, h = h, w
	}
	b := img.Bounds()
	return b.Dx() == w && b.Dy() == h
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
