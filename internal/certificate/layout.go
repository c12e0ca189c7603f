package certificate

import (
	"image"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-pledge-backend/internal/localize"
	"github.com/tbourn/go-pledge-backend/internal/script"
)

// heuristicAdvance approximates the advance of one glyph as a fraction of
// the font size when no metrics are available.
const heuristicAdvance = 0.55

// constituencyLabel joins the name to the localized constituency.
const constituencyLabel = "विधानसभा क्षेत्र "

// surface is a drawing target. Coordinates are in the surface's own units;
// text y follows the template convention (top for raster, baseline for PDF).
type surface interface {
	measure(text string, sc script.Script, bold bool, size float64) (float64, error)
	drawText(text string, sc script.Script, bold bool, size, x, y float64) error
	drawImage(img image.Image, r Rect) error
}

func heuristicWidth(text string, size float64) float64 {
	return float64(utf8.RuneCountInString(text)) * size * heuristicAdvance
}

// measureSegments returns the width of each segment, falling back to the
// heuristic for segments the surface cannot measure.
func measureSegments(s surface, segs []script.Segment, bold bool, size float64) ([]float64, float64) {
	widths := make([]float64, len(segs))
	total := 0.0
	for i, seg := range segs {
		w, err := s.measure(seg.Text, seg.Script, bold, size)
		if err != nil || w < 0 {
			w = heuristicWidth(seg.Text, size)
		}
		widths[i] = w
		total += w
	}
	return widths, total
}

// drawRun draws segs left to right starting at x, advancing a cursor by each
// measured width.
func drawRun(s surface, segs []script.Segment, widths []float64, bold bool, size, x, y float64, lg zerolog.Logger) {
	for i, seg := range segs {
		if err := s.drawText(seg.Text, seg.Script, bold, size, x, y); err != nil {
			lg.Warn().Err(err).Str("script", seg.Script.String()).Msg("text segment not drawn")
		}
		x += widths[i]
	}
}

// drawCentered draws text centered in band and returns the x it started at.
func drawCentered(s surface, text string, band TextBand, bold bool, lg zerolog.Logger) float64 {
	segs := script.Classify(text)
	widths, total := measureSegments(s, segs, bold, band.Size)
	x := band.Center() - total/2
	drawRun(s, segs, widths, bold, band.Size, x, band.Y, lg)
	return x
}

// drawLeft draws text starting at pt.
func drawLeft(s surface, text string, pt TextPoint, bold bool, lg zerolog.Logger) {
	segs := script.Classify(text)
	widths, _ := measureSegments(s, segs, bold, pt.Size)
	drawRun(s, segs, widths, bold, pt.Size, pt.X, pt.Y, lg)
}

// nameLine builds the text drawn in the name band.
func nameLine(tpl Template, req Request) string {
	name := strings.TrimSpace(req.Form.Name)
	if !tpl.NameWithConstituency {
		return name
	}
	var b strings.Builder
	if prof := strings.TrimSpace(req.Form.Profession); prof != "" {
		if req.Lang == localize.Hindi {
			prof = localize.ProfessionHindi(prof)
		}
		b.WriteString(prof)
		b.WriteString(" - ")
	}
	b.WriteString(name)
	if c := localize.ConstituencyHindi(req.Form.Constituency); c != "" {
		b.WriteString(" - ")
		b.WriteString(constituencyLabel)
		b.WriteString(c)
	}
	return b.String()
}

// drawElements draws the dynamic elements of a template onto s.
func drawElements(s surface, tpl Template, p Placement, req Request, date string, selfie image.Image, lg zerolog.Logger) {
	drawCentered(s, nameLine(tpl, req), p.Name, true, lg)
	drawLeft(s, date, p.Date, false, lg)
	if tpl.DrawPledgeID {
		drawLeft(s, req.PledgeID, p.PledgeID, false, lg)
	}
	if selfie != nil {
		if err := s.drawImage(selfie, p.Selfie); err != nil {
			lg.Warn().Err(err).Msg("selfie not drawn")
		}
	}
}
