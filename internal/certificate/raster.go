package certificate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/tbourn/go-pledge-backend/internal/script"
)

var errNoFont = errors.New("no font for script")

type faceKey struct {
	fontKey
	size float64
}

// rasterSurface draws on a gg canvas. Text y is the top of the line; the
// baseline is placed one ascent below it.
type rasterSurface struct {
	dc     *gg.Context
	fonts  *FontSet
	faces  map[faceKey]font.Face
	shaper *shaper
	buf    sfnt.Buffer
}

func newRasterSurface(dc *gg.Context, fonts *FontSet) *rasterSurface {
	return &rasterSurface{dc: dc, fonts: fonts, faces: map[faceKey]font.Face{}, shaper: newShaper(fonts)}
}

func (r *rasterSurface) face(sc script.Script, bold bool, size float64) (font.Face, error) {
	k := faceKey{fontKey{sc, bold}, size}
	if f, ok := r.faces[k]; ok {
		return f, nil
	}
	otf := r.fonts.Font(sc, bold)
	if otf == nil {
		return nil, errNoFont
	}
	f, err := opentype.NewFace(otf, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	r.faces[k] = f
	return f, nil
}

func (r *rasterSurface) measure(text string, sc script.Script, bold bool, size float64) (float64, error) {
	if run, ok := r.shaper.shape(text, bold, size); ok {
		return run.advance, nil
	}
	f, err := r.face(sc, bold, size)
	if err != nil {
		return 0, err
	}
	r.dc.SetFontFace(f)
	w, _ := r.dc.MeasureString(text)
	return w, nil
}

func (r *rasterSurface) drawText(text string, sc script.Script, bold bool, size, x, y float64) error {
	f, err := r.face(sc, bold, size)
	if err != nil {
		return err
	}
	ascent := float64(f.Metrics().Ascent) / 64
	if run, ok := r.shaper.shape(text, bold, size); ok {
		return r.fillRun(run, x, y+ascent)
	}
	r.dc.SetFontFace(f)
	r.dc.DrawString(text, x, y+ascent)
	return nil
}

// fillRun fills the outlines of a shaped run in the current color.
func (r *rasterSurface) fillRun(run shapedRun, x, baseline float64) error {
	if len(run.glyphs) == 0 {
		return nil
	}
	err := run.outline(&r.buf, x, baseline, pathOps{
		moveTo: r.dc.MoveTo,
		lineTo: r.dc.LineTo,
		quadTo: r.dc.QuadraticTo,
		cubeTo: r.dc.CubicTo,
	})
	if err != nil {
		r.dc.ClearPath()
		return err
	}
	r.dc.Fill()
	return nil
}

func (r *rasterSurface) drawImage(img image.Image, rect Rect) error {
	w, h := int(math.Round(rect.W)), int(math.Round(rect.H))
	if w <= 0 || h <= 0 {
		return fmt.Errorf("empty selfie box %vx%v", rect.W, rect.H)
	}
	r.dc.DrawImage(imaging.Resize(img, w, h, imaging.Lanczos), int(math.Round(rect.X)), int(math.Round(rect.Y)))
	return nil
}

func (r *rasterSurface) close() {
	for _, f := range r.faces {
		_ = f.Close()
	}
}

// composeRaster decodes the background, scales it and draws the dynamic
// elements at scaled coordinates.
func composeRaster(bg []byte, tpl Template, scale float64, req Request, date string, selfie image.Image, fonts *FontSet, lg zerolog.Logger) (image.Image, error) {
	base, err := imaging.Decode(bytes.NewReader(bg))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrTemplateUnavailable, tpl.Asset, err)
	}
	if scale <= 0 {
		scale = 1
	}
	if scale != 1 {
		w := int(math.Round(float64(base.Bounds().Dx()) * scale))
		h := int(math.Round(float64(base.Bounds().Dy()) * scale))
		base = imaging.Resize(base, w, h, imaging.Lanczos)
	}

	dc := gg.NewContextForImage(base)
	dc.SetColor(color.Black)
	s := newRasterSurface(dc, fonts)
	defer s.close()

	drawElements(s, tpl, tpl.Placement.Scale(scale), req, date, selfie, lg)
	return dc.Image(), nil
}
