// Package services – CertificateService
//
// CertificateService runs the certificate pipeline for one caller: compose
// and encode the certificate, upload the selfie and the certificate, record
// the pledge, attribute the conversion, obtain a share link and only then
// hand the file to the caller. Generation is the only step whose failure is
// returned; every later step degrades and the run continues.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/certificate"
	"github.com/tbourn/go-pledge-backend/internal/client"
	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/exif"
	"github.com/tbourn/go-pledge-backend/internal/localize"
	"github.com/tbourn/go-pledge-backend/internal/pledgeid"
	"github.com/tbourn/go-pledge-backend/internal/repo"
	"github.com/tbourn/go-pledge-backend/internal/storage"
)

// Pipeline steps, used as fallback metric labels and in Result.Degraded.
const (
	StepSelfie      = "selfie_upload"
	StepCertificate = "certificate_upload"
	StepPledge      = "pledge_upsert"
	StepTrackLink   = "tracking_link"
	StepDeliver     = "deliver"
)

// Defaults for the certificate upload retry.
const (
	DefaultUploadRetries = 2
	DefaultRetryDelay    = 300 * time.Millisecond
)

// CertificateGenerator composes and encodes certificates.
type CertificateGenerator interface {
	Generate(ctx context.Context, req certificate.Request, opts certificate.Options) (certificate.Artifact, error)
}

// Tracker is the tracking side of the collaborator API.
type Tracker interface {
	CreateTrackingLink(ctx context.Context, r client.TrackLinkRequest) (client.TrackLinkResponse, error)
	MarkConversion(ctx context.Context, r client.ConversionRequest) error
}

// CertificateInput is one certificate request.
type CertificateInput struct {
	// PledgeID is reused when well-formed; otherwise a new id is issued.
	PledgeID string
	Form     domain.PledgeForm
	Lang     localize.Lang
	// Selfie is the raw captured image. Optional.
	Selfie  []byte
	Options certificate.Options
	// TrackingID is the share link the caller arrived through, if any.
	TrackingID string
	// IdempotencyKey, when set, records the outcome for replay.
	IdempotencyKey string
}

// Result describes a finished run. Degraded lists the steps that fell back.
type Result struct {
	PledgeID          string
	Artifact          certificate.Artifact
	CertificateURL    string
	SelfieURL         string
	TrackingLink      string
	TrackingID        string
	SelfieStatus      string
	CertificateStatus string
	StorageLocation   string
	PledgeTier        client.Tier
	Degraded          []string
}

// IsDegraded reports whether step fell back during the run.
func (r *Result) IsDegraded(step string) bool {
	for _, s := range r.Degraded {
		if s == step {
			return true
		}
	}
	return false
}

func (r *Result) degrade(step string) {
	if !r.IsDegraded(step) {
		r.Degraded = append(r.Degraded, step)
		fallbacks.WithLabelValues(step).Inc()
	}
}

// CertificateService coordinates certificate generation and persistence.
type CertificateService struct {
	Generator CertificateGenerator
	Corrector *exif.Corrector
	// Store receives selfies and certificates. Nil skips straight to Spool.
	Store storage.BlobStore
	// Spool is the local fallback for certificates.
	Spool    storage.BlobStore
	Pledges  client.PledgeWriter
	Tracking Tracker
	IDs      pledgeid.Generator
	// DB enables idempotent replays. Optional.
	DB             *gorm.DB
	IdempotencyTTL time.Duration

	PublicBaseURL string
	// UploadRetries is the number of certificate upload retries; zero means
	// DefaultUploadRetries and a negative value disables retrying.
	UploadRetries int
	RetryDelay    time.Duration
	SelfieMaxSide int
	SelfieQuality float32

	Logger zerolog.Logger
}

func (s *CertificateService) tracer() trace.Tracer {
	return otel.Tracer("services/CertificateService")
}

// Run executes the pipeline for sess. A concurrent Run on the same session
// returns ErrGenerationInProgress without side effects. delivery may be nil.
func (s *CertificateService) Run(ctx context.Context, sess *Session, in CertificateInput, delivery certificate.Delivery) (*Result, error) {
	if !sess.TryBegin() {
		certGenerated.WithLabelValues(string(in.Options.Template), string(in.Options.Format), "busy").Inc()
		return nil, ErrGenerationInProgress
	}
	defer sess.End()

	ctx, span := s.tracer().Start(ctx, "Run", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("template", string(in.Options.Template)),
		attribute.String("format", string(in.Options.Format)),
	))
	defer span.End()

	in.Form = in.Form.Trimmed()
	// Hindi forms submit the Devanagari district; the record keeps English.
	in.Form.District = localize.EnglishDistrict(in.Form.District)
	if in.Form.Name == "" {
		return nil, ErrMissingName
	}
	sess.RememberTrackingID(in.TrackingID)

	pledgeID, fresh, err := s.IDs.Ensure(in.PledgeID)
	if err != nil {
		return nil, fmt.Errorf("issue pledge id: %w", err)
	}
	if fresh && in.PledgeID != "" {
		s.Logger.Info().Str("given", in.PledgeID).Str("pledge_id", pledgeID).Msg("pledge id regenerated")
	}
	span.SetAttributes(attribute.String("pledge.id", pledgeID))
	lg := s.Logger.With().Str("pledge_id", pledgeID).Str("session_id", sess.ID).Logger()

	res := &Result{PledgeID: pledgeID}

	selfie := in.Selfie
	if len(selfie) > 0 && s.Corrector != nil {
		selfie = s.Corrector.Correct(selfie).Data
	}

	// 1. generate
	art, err := s.generate(ctx, certificate.Request{
		PledgeID: pledgeID,
		Form:     in.Form,
		Lang:     in.Lang,
		Selfie:   selfie,
	}, in.Options)
	if err != nil {
		certGenerated.WithLabelValues(string(in.Options.Template), string(in.Options.Format), "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		lg.Error().Err(err).Msg("certificate generation failed")
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	res.Artifact = art

	// 2. selfie
	if len(selfie) > 0 {
		s.uploadSelfie(ctx, pledgeID, in.Selfie, selfie, res, lg)
	}

	// 3. certificate
	s.uploadCertificate(ctx, pledgeID, art, res, lg)

	// 4. pledge record
	s.writePledge(ctx, pledgeID, in, res, lg)

	// 5. conversion
	s.markConversion(ctx, sess, pledgeID, lg)

	// 6. share link
	s.trackingLink(ctx, pledgeID, art.Format, res, lg)

	if in.IdempotencyKey != "" {
		s.remember(ctx, sess.ID, in.IdempotencyKey, res, lg)
	}

	// 7. deliver
	if delivery != nil {
		if err := delivery.Deliver(ctx, art); err != nil {
			lg.Warn().Err(err).Msg("certificate delivery failed")
			res.degrade(StepDeliver)
		}
	}

	outcome := "ok"
	if len(res.Degraded) > 0 {
		outcome = "degraded"
	}
	certGenerated.WithLabelValues(string(in.Options.Template), string(art.Format), outcome).Inc()
	lg.Info().
		Str("certificate_url", res.CertificateURL).
		Str("storage", res.StorageLocation).
		Strs("degraded", res.Degraded).
		Msg("certificate pipeline finished")
	return res, nil
}

func (s *CertificateService) generate(ctx context.Context, req certificate.Request, opts certificate.Options) (certificate.Artifact, error) {
	ctx, span := s.tracer().Start(ctx, "generate")
	defer span.End()

	start := time.Now()
	art, err := s.Generator.Generate(ctx, req, opts)
	tpl := string(opts.Template)
	if tpl == "" {
		tpl = string(certificate.KindRaster)
	}
	certDuration.WithLabelValues(tpl).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
	}
	return art, err
}

// uploadSelfie stores the compressed upright selfie, or the captured bytes
// when they cannot be compressed. If the upload fails the stored bytes are
// inlined as a data URL instead. The upright PNG itself is never stored.
func (s *CertificateService) uploadSelfie(ctx context.Context, pledgeID string, captured, upright []byte, res *Result, lg zerolog.Logger) {
	ctx, span := s.tracer().Start(ctx, "uploadSelfie")
	defer span.End()

	maxSide, quality := s.SelfieMaxSide, s.SelfieQuality
	if maxSide <= 0 {
		maxSide = storage.SelfieMaxSide
	}
	if quality <= 0 {
		quality = storage.SelfieQuality
	}

	body, ct := captured, http.DetectContentType(captured)
	ext, isImage := selfieExt(ct)
	if small, err := storage.CompressSelfie(upright, maxSide, quality); err == nil {
		body, ct, ext, isImage = small, "image/webp", "webp", true
	} else {
		lg.Debug().Err(err).Str("content_type", ct).Msg("selfie compression failed; keeping captured bytes")
	}
	if !isImage {
		lg.Warn().Str("content_type", ct).Msg("selfie is not an image; not stored")
		res.SelfieStatus = domain.StatusFailed
		res.degrade(StepSelfie)
		return
	}

	if s.Store != nil {
		u, err := s.Store.Put(ctx, storage.SelfieKey(pledgeID, ext), body, ct)
		if err == nil {
			uploads.WithLabelValues("selfie", "ok").Inc()
			res.SelfieURL, res.SelfieStatus = u, domain.StatusUploaded
			return
		}
		uploads.WithLabelValues("selfie", "error").Inc()
		span.RecordError(err)
		lg.Warn().Err(err).Msg("selfie upload failed; storing inline")
	}
	res.SelfieURL = exif.EncodeDataURL(body, ct)
	res.SelfieStatus = domain.StatusFallback
	res.degrade(StepSelfie)
}

// selfieExt maps a sniffed image type to a file extension.
func selfieExt(contentType string) (string, bool) {
	switch contentType {
	case "image/jpeg":
		return "jpg", true
	case "image/png":
		return "png", true
	case "image/webp":
		return "webp", true
	case "image/gif":
		return "gif", true
	case "image/bmp":
		return "bmp", true
	}
	return "", false
}

func (s *CertificateService) uploadCertificate(ctx context.Context, pledgeID string, art certificate.Artifact, res *Result, lg zerolog.Logger) {
	ctx, span := s.tracer().Start(ctx, "uploadCertificate")
	defer span.End()

	key := storage.CertificateKey(pledgeID, art.Format.Ext())
	if s.Store != nil {
		retries := s.UploadRetries
		switch {
		case retries == 0:
			retries = DefaultUploadRetries
		case retries < 0:
			retries = 0
		}
		delay := s.RetryDelay
		if delay <= 0 {
			delay = DefaultRetryDelay
		}
		var err error
		for attempt := 0; attempt <= retries; attempt++ {
			if attempt > 0 {
				if !sleep(ctx, delay) {
					break
				}
			}
			var u string
			u, err = s.Store.Put(ctx, key, art.Data, art.ContentType)
			if err == nil {
				uploads.WithLabelValues("certificate", "ok").Inc()
				res.CertificateURL = u
				res.CertificateStatus = domain.StatusUploaded
				res.StorageLocation = domain.LocationRemote
				return
			}
			uploads.WithLabelValues("certificate", "error").Inc()
			lg.Warn().Err(err).Int("attempt", attempt+1).Msg("certificate upload failed")
		}
		span.RecordError(err)
	}

	res.degrade(StepCertificate)
	res.CertificateStatus = domain.StatusFallback
	if s.Spool != nil {
		// The request context may be what failed the remote upload.
		u, err := s.Spool.Put(context.WithoutCancel(ctx), key, art.Data, art.ContentType)
		if err == nil {
			res.CertificateURL = u
			res.StorageLocation = domain.LocationLocal
			return
		}
		lg.Error().Err(err).Msg("certificate spool failed")
	}
	res.CertificateURL = "local:" + key
	res.CertificateStatus = domain.StatusFailed
	res.StorageLocation = domain.LocationInline
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *CertificateService) writePledge(ctx context.Context, pledgeID string, in CertificateInput, res *Result, lg zerolog.Logger) {
	ctx, span := s.tracer().Start(ctx, "writePledge")
	defer span.End()

	if s.Pledges == nil {
		res.degrade(StepPledge)
		return
	}
	u := domain.UpsertFromForm(pledgeID, in.Form, string(in.Lang))
	if res.SelfieURL != "" {
		u.SelfieURL = domain.Ptr(res.SelfieURL)
		u.SelfieStatus = domain.Ptr(res.SelfieStatus)
	}
	if res.Artifact.Format == certificate.FormatPDF {
		u.CertificatePDFURL = domain.Ptr(res.CertificateURL)
	} else {
		u.CertificateImageURL = domain.Ptr(res.CertificateURL)
	}
	u.CertificateStatus = domain.Ptr(res.CertificateStatus)
	u.StorageLocation = domain.Ptr(res.StorageLocation)

	tier, err := s.Pledges.WritePledge(ctx, u)
	res.PledgeTier = tier
	if err != nil {
		span.RecordError(err)
		lg.Warn().Err(err).Str("tier", tier.String()).Msg("pledge upsert degraded")
		res.degrade(StepPledge)
	}
}

func (s *CertificateService) markConversion(ctx context.Context, sess *Session, pledgeID string, lg zerolog.Logger) {
	if s.Tracking == nil {
		return
	}
	ctx, span := s.tracer().Start(ctx, "markConversion")
	defer span.End()

	err := s.Tracking.MarkConversion(ctx, client.ConversionRequest{
		SessionID:  sess.ID,
		TrackingID: sess.TrackingID(),
		PledgeID:   pledgeID,
	})
	if err != nil {
		lg.Debug().Err(err).Msg("conversion not recorded")
	}
}

func (s *CertificateService) trackingLink(ctx context.Context, pledgeID string, f certificate.Format, res *Result, lg zerolog.Logger) {
	ctx, span := s.tracer().Start(ctx, "trackingLink")
	defer span.End()

	if s.Tracking != nil {
		out, err := s.Tracking.CreateTrackingLink(ctx, client.TrackLinkRequest{
			PledgeID:         pledgeID,
			OriginalPledgeID: pledgeID,
			Metadata:         map[string]any{"source": "certificate", "format": string(f)},
			CreatedBy:        "certificate",
		})
		if err == nil {
			res.TrackingLink, res.TrackingID = out.TrackingLink, out.TrackingID
			return
		}
		span.RecordError(err)
		lg.Warn().Err(err).Msg("tracking link unavailable; using plain share link")
	}
	res.TrackingLink = FallbackShareLink(s.PublicBaseURL, pledgeID)
	res.degrade(StepTrackLink)
}

// FallbackShareLink is the share link used when no tracking link exists.
func FallbackShareLink(base, pledgeID string) string {
	return strings.TrimRight(base, "/") + "/?pledge=" + url.QueryEscape(pledgeID)
}

// Replay returns the stored outcome of an earlier request with the same
// session and idempotency key.
func (s *CertificateService) Replay(ctx context.Context, sessionID, key string) (*domain.Idempotency, bool) {
	if s.DB == nil || key == "" {
		return nil, false
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, sessionID, key, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.Logger.Warn().Err(err).Msg("idempotency lookup failed")
		}
		return nil, false
	}
	return rec, true
}

func (s *CertificateService) remember(ctx context.Context, sessionID, key string, res *Result, lg zerolog.Logger) {
	if s.DB == nil {
		return
	}
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, sessionID, key, res.PledgeID, res.CertificateURL, 201, ttl)
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		lg.Warn().Err(err).Msg("idempotency record not stored")
	}
}
