package certificate

import (
	"bytes"
	"math"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/tbourn/go-pledge-backend/internal/script"
)

var hindi = language.NewLanguage("hi")

// shapedRun is a line of positioned glyphs. Advances and offsets are in
// surface units at size.
type shapedRun struct {
	font    *opentype.Font
	glyphs  []shaping.Glyph
	size    float64
	advance float64
}

// pathOps receives glyph outlines in surface coordinates, y pointing down.
type pathOps struct {
	moveTo func(x, y float64)
	lineTo func(x, y float64)
	quadTo func(cx, cy, x, y float64)
	cubeTo func(c1x, c1y, c2x, c2y, x, y float64)
}

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }

func toFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }

// outline emits the outlines of r with the pen starting at (x, baseline).
func (r shapedRun) outline(buf *sfnt.Buffer, x, baseline float64, p pathOps) error {
	if r.font == nil {
		return errNoFont
	}
	ppem := toFixed(r.size)
	pen := x
	for _, g := range r.glyphs {
		segs, err := r.font.LoadGlyph(buf, sfnt.GlyphIndex(g.GlyphID), ppem, nil)
		if err != nil {
			return err
		}
		// Shaper offsets point up, outline coordinates down.
		ox, oy := pen+fromFixed(g.XOffset), baseline-fromFixed(g.YOffset)
		for _, sg := range segs {
			a := sg.Args
			switch sg.Op {
			case sfnt.SegmentOpMoveTo:
				p.moveTo(ox+fromFixed(a[0].X), oy+fromFixed(a[0].Y))
			case sfnt.SegmentOpLineTo:
				p.lineTo(ox+fromFixed(a[0].X), oy+fromFixed(a[0].Y))
			case sfnt.SegmentOpQuadTo:
				p.quadTo(ox+fromFixed(a[0].X), oy+fromFixed(a[0].Y),
					ox+fromFixed(a[1].X), oy+fromFixed(a[1].Y))
			case sfnt.SegmentOpCubeTo:
				p.cubeTo(ox+fromFixed(a[0].X), oy+fromFixed(a[0].Y),
					ox+fromFixed(a[1].X), oy+fromFixed(a[1].Y),
					ox+fromFixed(a[2].X), oy+fromFixed(a[2].Y))
			}
		}
		pen += fromFixed(g.XAdvance)
	}
	return nil
}

type shapeKey struct {
	text string
	bold bool
	size float64
}

// shaper applies the font's substitution and positioning tables to
// Devanagari text so that conjuncts and pre-base matras come out in their
// written form. Text without Devanagari is left to the surface's plain
// per-rune path. A shaper belongs to one surface and is not safe for
// concurrent use.
type shaper struct {
	fonts *FontSet
	hb    shaping.HarfbuzzShaper
	faces map[bool]*gtfont.Face
	runs  map[shapeKey]shapedRun
}

func newShaper(fonts *FontSet) *shaper {
	return &shaper{fonts: fonts, faces: map[bool]*gtfont.Face{}, runs: map[shapeKey]shapedRun{}}
}

// face returns the shaping face and the outline font of the fetched
// Devanagari font, falling back to the regular weight.
func (s *shaper) face(bold bool) (*gtfont.Face, *opentype.Font, bool) {
	if s.fonts == nil {
		return nil, nil, false
	}
	for _, b := range []bool{bold, false} {
		k := fontKey{script.Devanagari, b}
		otf, ok := s.fonts.parsed[k]
		if !ok {
			continue
		}
		if f, ok := s.faces[b]; ok {
			return f, otf, true
		}
		f, err := gtfont.ParseTTF(bytes.NewReader(s.fonts.raw[k]))
		if err != nil {
			continue
		}
		s.faces[b] = f
		return f, otf, true
	}
	return nil, nil, false
}

// shape returns the shaped run for text, or false when text has no
// Devanagari or no Devanagari font was fetched.
func (s *shaper) shape(text string, bold bool, size float64) (shapedRun, bool) {
	if s == nil || !script.HasDevanagari(text) {
		return shapedRun{}, false
	}
	k := shapeKey{text, bold, size}
	if r, ok := s.runs[k]; ok {
		return r, true
	}
	face, otf, ok := s.face(bold)
	if !ok {
		return shapedRun{}, false
	}
	r := shapeText(&s.hb, face, otf, text, language.Devanagari, size)
	s.runs[k] = r
	return r, true
}

func shapeText(hb *shaping.HarfbuzzShaper, face *gtfont.Face, otf *opentype.Font, text string, sc language.Script, size float64) shapedRun {
	runes := []rune(text)
	out := hb.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      face,
		Size:      toFixed(size),
		Script:    sc,
		Language:  hindi,
	})
	return shapedRun{font: otf, glyphs: out.Glyphs, size: size, advance: fromFixed(out.Advance)}
}
