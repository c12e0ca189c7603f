// Package certificate composes pledge certificates.
//
// A certificate is a fixed background template with four dynamic elements
// drawn on top: the pledger's name line (centered in a horizontal band),
// the date, the pledge identifier and the selfie. Three templates exist:
//
//   - Raster: a JPEG background, composed on a gg canvas and encoded as
//     PNG, JPEG or a single-page PDF.
//   - Document: a one-page PDF background imported with gofpdi and drawn
//     over with fpdf. It can only be encoded as PDF.
//   - Plain: an A4 layout drawn from scratch, used when no background is
//     deployed.
//
// Backgrounds are fetched per generation with a version token so that a
// redeployed asset is picked up without restarting. Fonts are fetched once
// and cached. A template that cannot be fetched is the only fatal error;
// missing fonts, metrics and selfies degrade the output instead.
package certificate

import "fmt"

// Kind selects a template family.
type Kind string

// Template kinds.
const (
	KindRaster   Kind = "raster"
	KindDocument Kind = "document"
	KindPlain    Kind = "plain"
)

// ParseKind validates a template kind; empty selects KindRaster.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "":
		return KindRaster, nil
	case KindRaster, KindDocument, KindPlain:
		return Kind(s), nil
	}
	return "", fmt.Errorf("certificate: unknown template %q", s)
}

// TextBand is a horizontal band a line is centered in. Y is the top of the
// text for raster templates and the baseline for document templates.
type TextBand struct {
	X0, X1 float64
	Y      float64
	Size   float64
}

// Center returns the horizontal midpoint of the band.
func (b TextBand) Center() float64 { return (b.X0 + b.X1) / 2 }

// TextPoint anchors left-aligned text.
type TextPoint struct {
	X, Y float64
	Size float64
}

// Rect is an axis-aligned box with a top-left origin.
type Rect struct {
	X, Y, W, H float64
}

// Placement holds the coordinates of the dynamic elements of one template
// version, in the template's own units with a top-left origin.
type Placement struct {
	Name     TextBand
	Date     TextPoint
	PledgeID TextPoint
	Selfie   Rect
}

// Scale returns p with every coordinate and size multiplied by f.
func (p Placement) Scale(f float64) Placement {
	return Placement{
		Name:     TextBand{X0: p.Name.X0 * f, X1: p.Name.X1 * f, Y: p.Name.Y * f, Size: p.Name.Size * f},
		Date:     TextPoint{X: p.Date.X * f, Y: p.Date.Y * f, Size: p.Date.Size * f},
		PledgeID: TextPoint{X: p.PledgeID.X * f, Y: p.PledgeID.Y * f, Size: p.PledgeID.Size * f},
		Selfie:   Rect{X: p.Selfie.X * f, Y: p.Selfie.Y * f, W: p.Selfie.W * f, H: p.Selfie.H * f},
	}
}

// Template describes one deployed background and where to draw on it.
type Template struct {
	Kind Kind
	// Asset is the file name under the asset root; empty for KindPlain.
	Asset     string
	Placement Placement
	// NameWithConstituency extends the name line with the profession and
	// the localized assembly constituency.
	NameWithConstituency bool
	// DrawPledgeID controls whether the identifier is printed.
	DrawPledgeID bool
	// SelfieMaxSide caps the embedded selfie before placement; 0 means no cap.
	SelfieMaxSide int
}

// RasterTemplate is the JPEG certificate background. Coordinates are in
// template pixels.
var RasterTemplate = Template{
	Kind:  KindRaster,
	Asset: "default-format.jpg",
	Placement: Placement{
		Name:     TextBand{X0: 560, X1: 1040, Y: 1115, Size: 72},
		Date:     TextPoint{X: 620, Y: 1215, Size: 48},
		PledgeID: TextPoint{X: 520, Y: 2400, Size: 48},
		Selfie:   Rect{X: 700, Y: 650, W: 330, H: 330},
	},
	DrawPledgeID: true,
}

// DocumentTemplate is the A4 PDF certificate background. Coordinates are in
// PDF points.
var DocumentTemplate = Template{
	Kind:  KindDocument,
	Asset: "default-format.pdf",
	Placement: Placement{
		Name:     TextBand{X0: 190, X1: 440, Y: 436, Size: 20},
		Date:     TextPoint{X: 144, Y: 457, Size: 10},
		PledgeID: TextPoint{X: 194, Y: 905, Size: 16},
		Selfie:   Rect{X: 237, Y: 266, W: 130, H: 130},
	},
	NameWithConstituency: true,
	DrawPledgeID:         true,
	SelfieMaxSide:        1024,
}

// PlainTemplate has no background asset. Placement is in PDF points on A4;
// the name is drawn left-aligned from Name.X0.
var PlainTemplate = Template{
	Kind: KindPlain,
	Placement: Placement{
		Name:     TextBand{X0: 42, X1: 553.28, Y: 140, Size: 22},
		Date:     TextPoint{X: 42, Y: 240, Size: 10},
		PledgeID: TextPoint{X: 42, Y: 260, Size: 10},
		Selfie:   Rect{X: 443.28, Y: 84, W: 110, H: 110},
	},
	DrawPledgeID:  true,
	SelfieMaxSide: 1024,
}

// TemplateFor returns the built-in template of a kind.
func TemplateFor(k Kind) Template {
	switch k {
	case KindDocument:
		return DocumentTemplate
	case KindPlain:
		return PlainTemplate
	}
	return RasterTemplate
}
