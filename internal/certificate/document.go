package certificate

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/tbourn/go-pledge-backend/internal/script"
)

// A4 in points.
const (
	a4Width  = 595.28
	a4Height = 841.89
)

// newPDF returns a document with one unit of 1pt, no margins and its
// metadata dates pinned to now so equal inputs produce equal bytes.
func newPDF(now time.Time) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: a4Width, Ht: a4Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("pledged", true)
	return pdf
}

func outputPDF(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pdfFont is a registered family and the translator its text needs.
type pdfFont struct {
	family string
	style  string
	tr     func(string) string
}

// pdfSurface draws with fpdf. Text y is the baseline.
// Devanagari runs are shaped and filled as outlines, since fpdf maps runes
// to glyphs one by one.
type pdfSurface struct {
	pdf    *fpdf.Fpdf
	fonts  *FontSet
	added  map[fontKey]pdfFont
	images int
	shaper *shaper
	buf    sfnt.Buffer
}

func newPDFSurface(pdf *fpdf.Fpdf, fonts *FontSet) *pdfSurface {
	return &pdfSurface{pdf: pdf, fonts: fonts, added: map[fontKey]pdfFont{}, shaper: newShaper(fonts)}
}

// takeErr returns and clears the sticky fpdf error so later drawing still
// happens after a single failed element.
func (s *pdfSurface) takeErr() error {
	if !s.pdf.Err() {
		return nil
	}
	err := s.pdf.Error()
	s.pdf.ClearError()
	return err
}

// font registers the face for a script and weight on first use. Latin falls
// back to the bundled Go fonts and finally to Helvetica; Devanagari has no
// fallback because the core fonts cannot encode it.
func (s *pdfSurface) font(sc script.Script, bold bool) (pdfFont, error) {
	k := fontKey{sc, bold}
	if f, ok := s.added[k]; ok {
		return f, nil
	}

	ttf, ok := s.fonts.TTF(sc, bold)
	if !ok {
		ttf, ok = s.fonts.TTF(sc, false)
	}
	if !ok && sc == script.Latin {
		ttf, ok = goregular.TTF, true
		if bold {
			ttf = gobold.TTF
		}
	}
	if !ok {
		return pdfFont{}, fmt.Errorf("%w: %s", errNoFont, sc)
	}

	f := pdfFont{family: sc.String() + "-" + k.weight(), tr: func(t string) string { return t }}
	s.pdf.AddUTF8FontFromBytes(f.family, "", ttf)
	if err := s.takeErr(); err != nil {
		if sc != script.Latin {
			return pdfFont{}, err
		}
		f = pdfFont{family: "Helvetica", tr: s.pdf.UnicodeTranslatorFromDescriptor("")}
		if bold {
			f.style = "B"
		}
	}
	s.added[k] = f
	return f, nil
}

func (s *pdfSurface) use(sc script.Script, bold bool, size float64) (pdfFont, error) {
	f, err := s.font(sc, bold)
	if err != nil {
		return f, err
	}
	s.pdf.SetFont(f.family, f.style, size)
	return f, s.takeErr()
}

func (s *pdfSurface) measure(text string, sc script.Script, bold bool, size float64) (float64, error) {
	if run, ok := s.shaper.shape(text, bold, size); ok {
		return run.advance, nil
	}
	f, err := s.use(sc, bold, size)
	if err != nil {
		return 0, err
	}
	w := s.pdf.GetStringWidth(f.tr(text))
	return w, s.takeErr()
}

func (s *pdfSurface) drawText(text string, sc script.Script, bold bool, size, x, y float64) error {
	if run, ok := s.shaper.shape(text, bold, size); ok {
		return s.fillRun(run, x, y)
	}
	f, err := s.use(sc, bold, size)
	if err != nil {
		return err
	}
	s.pdf.Text(x, y, f.tr(text))
	return s.takeErr()
}

// fillRun fills the outlines of a shaped run in the text color.
func (s *pdfSurface) fillRun(run shapedRun, x, baseline float64) error {
	if len(run.glyphs) == 0 {
		return nil
	}
	fr, fg, fb := s.pdf.GetFillColor()
	s.pdf.SetFillColor(s.pdf.GetTextColor())
	defer s.pdf.SetFillColor(fr, fg, fb)
	err := run.outline(&s.buf, x, baseline, pathOps{
		moveTo: s.pdf.MoveTo,
		lineTo: s.pdf.LineTo,
		quadTo: s.pdf.CurveTo,
		cubeTo: s.pdf.CurveBezierCubicTo,
	})
	s.pdf.DrawPath("F")
	if err != nil {
		return err
	}
	return s.takeErr()
}

func (s *pdfSurface) drawImage(img image.Image, r Rect) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return err
	}
	s.images++
	name := fmt.Sprintf("selfie-%d", s.images)
	opt := fpdf.ImageOptions{ImageType: "JPG"}
	s.pdf.RegisterImageOptionsReader(name, opt, &buf)
	s.pdf.ImageOptions(name, r.X, r.Y, r.W, r.H, false, opt, 0, "")
	return s.takeErr()
}

// importPage imports the first page of a PDF background. gofpdi panics on
// malformed input, so the panic is turned into ErrTemplateUnavailable.
func importPage(imp *gofpdi.Importer, pdf *fpdf.Fpdf, bg []byte) (tplID int, w, h float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: import page: %v", ErrTemplateUnavailable, r)
		}
	}()
	rs := io.ReadSeeker(bytes.NewReader(bg))
	tplID = imp.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	w, h = a4Width, a4Height
	if box, ok := imp.GetPageSizes()[1]["/MediaBox"]; ok && box["w"] > 0 && box["h"] > 0 {
		w, h = box["w"], box["h"]
	}
	return tplID, w, h, nil
}

// composeDocument draws over an imported PDF page and returns the PDF bytes.
func composeDocument(bg []byte, tpl Template, req Request, date string, selfie image.Image, fonts *FontSet, now time.Time, lg zerolog.Logger) ([]byte, error) {
	pdf := newPDF(now)
	imp := gofpdi.NewImporter()
	tplID, w, h, err := importPage(imp, pdf, bg)
	if err != nil {
		return nil, err
	}
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	imp.UseImportedTemplate(pdf, tplID, 0, 0, w, h)
	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnavailable, pdf.Error())
	}

	pdf.SetTextColor(0, 0, 0)
	drawElements(newPDFSurface(pdf, fonts), tpl, tpl.Placement, req, date, selfie, lg)
	return outputPDF(pdf)
}

// rasterToPDF embeds a composited canvas as a full page. The page keeps the
// canvas aspect ratio at 72 dpi.
func rasterToPDF(img image.Image, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(92)); err != nil {
		return nil, err
	}
	w, h := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())

	pdf := newPDF(now)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	opt := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("certificate", opt, &buf)
	pdf.ImageOptions("certificate", 0, 0, w, h, false, opt, 0, "")
	if pdf.Err() {
		return nil, pdf.Error()
	}
	return outputPDF(pdf)
}
