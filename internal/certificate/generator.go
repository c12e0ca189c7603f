package certificate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/localize"
)

// Request is everything drawn on one certificate.
type Request struct {
	PledgeID string
	Form     domain.PledgeForm
	Lang     localize.Lang
	// Selfie is an encoded image, already orientation-corrected. Optional.
	Selfie []byte
}

// Delivery receives a finished artifact (a download response, a file).
type Delivery interface {
	Deliver(ctx context.Context, a Artifact) error
}

// DeliveryFunc adapts a function to Delivery.
type DeliveryFunc func(ctx context.Context, a Artifact) error

// Deliver implements Delivery.
func (f DeliveryFunc) Deliver(ctx context.Context, a Artifact) error { return f(ctx, a) }

// Generator composes and encodes certificates. It is safe for concurrent use.
type Generator struct {
	Assets AssetSource
	Fonts  *FontLoader
	// Clock supplies the certificate date; nil means time.Now.
	Clock func() time.Time
	// Location is the time zone the date is printed in; nil means UTC.
	Location *time.Location
	Logger   zerolog.Logger
}

// NewGenerator returns a Generator reading templates and fonts from src.
func NewGenerator(src AssetSource, loc *time.Location, lg zerolog.Logger) *Generator {
	return &Generator{
		Assets:   src,
		Fonts:    NewFontLoader(src, lg),
		Location: loc,
		Logger:   lg,
	}
}

func (g *Generator) now() time.Time {
	t := time.Now()
	if g.Clock != nil {
		t = g.Clock()
	}
	if g.Location != nil {
		return t.In(g.Location)
	}
	return t.UTC()
}

// normalize fills defaults and rejects combinations that cannot be encoded.
func normalize(o Options) (Options, error) {
	if o.Template == "" {
		o.Template = KindRaster
	}
	if o.Format == "" {
		o.Format = FormatPNG
		if o.Template != KindRaster {
			o.Format = FormatPDF
		}
	}
	if o.Template != KindRaster && o.Format != FormatPDF {
		return o, fmt.Errorf("%w: %s template encodes to pdf only", ErrUnsupportedFormat, o.Template)
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return o, nil
}

// decodeSelfie decodes and caps the selfie. Any failure leaves the
// certificate without a photo.
func (g *Generator) decodeSelfie(b []byte, maxSide int) image.Image {
	if len(b) == 0 {
		return nil
	}
	img, err := imaging.Decode(bytes.NewReader(b))
	if err != nil {
		g.Logger.Warn().Err(err).Msg("selfie undecodable; drawing certificate without it")
		return nil
	}
	if maxSide > 0 {
		if bd := img.Bounds(); bd.Dx() > maxSide || bd.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}
	}
	return img
}

// Generate composes and encodes a certificate. Only an unavailable template
// or an encoding failure is an error.
func (g *Generator) Generate(ctx context.Context, req Request, opts Options) (Artifact, error) {
	opts, err := normalize(opts)
	if err != nil {
		return Artifact{}, err
	}
	tpl := TemplateFor(opts.Template)
	now := g.now()
	fonts := g.Fonts.Load(ctx)
	selfie := g.decodeSelfie(req.Selfie, tpl.SelfieMaxSide)

	var data []byte
	switch tpl.Kind {
	case KindRaster:
		bg, err := g.fetchTemplate(ctx, tpl.Asset)
		if err != nil {
			return Artifact{}, err
		}
		img, err := composeRaster(bg, tpl, opts.Scale, req, localize.ShortDate(now), selfie, fonts, g.Logger)
		if err != nil {
			return Artifact{}, err
		}
		data, err = encodeRaster(img, opts.Format, opts.Quality, func(img image.Image) ([]byte, error) {
			return rasterToPDF(img, now)
		})
		if err != nil {
			return Artifact{}, fmt.Errorf("encode %s: %w", opts.Format, err)
		}
	case KindDocument:
		bg, err := g.fetchTemplate(ctx, tpl.Asset)
		if err != nil {
			return Artifact{}, err
		}
		data, err = composeDocument(bg, tpl, req, localize.ShortDate(now), selfie, fonts, now, g.Logger)
		if err != nil {
			return Artifact{}, fmt.Errorf("encode pdf: %w", err)
		}
	case KindPlain:
		data, err = composePlain(req, now, selfie, fonts, g.Logger)
		if err != nil {
			return Artifact{}, fmt.Errorf("encode pdf: %w", err)
		}
	}

	g.Logger.Debug().
		Str("pledge_id", req.PledgeID).
		Str("template", string(tpl.Kind)).
		Str("format", string(opts.Format)).
		Int("bytes", len(data)).
		Msg("certificate generated")

	return Artifact{
		Data:        data,
		FileName:    FileName(req.Form.Name, req.PledgeID, req.Lang, opts.Format),
		ContentType: opts.Format.ContentType(),
		Format:      opts.Format,
	}, nil
}

// GenerateAndDeliver generates and immediately hands the artifact to d.
func (g *Generator) GenerateAndDeliver(ctx context.Context, req Request, opts Options, d Delivery) (Artifact, error) {
	a, err := g.Generate(ctx, req, opts)
	if err != nil {
		return Artifact{}, err
	}
	if err := d.Deliver(ctx, a); err != nil {
		return a, fmt.Errorf("deliver %s: %w", a.FileName, err)
	}
	return a, nil
}
