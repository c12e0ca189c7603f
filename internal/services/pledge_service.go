// Package services – PledgeService
//
// PledgeService is the collaborator side of POST /pledges and the read-only
// pledge routes. The relational store is authoritative; each committed row
// is then copied to the document mirror, best effort.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/repo"
)

// DefaultCountOffset is added to the stored pledge count for display.
const DefaultCountOffset = 3000

// Mirror receives copies of committed rows.
type Mirror interface {
	PutPledge(ctx context.Context, p *domain.Pledge) error
	PutTrackingLink(ctx context.Context, l *domain.TrackingLink) error
}

// PledgeCount is the answer of GET /pledges/count.
type PledgeCount struct {
	Total   int64      `json:"total"`
	Display int64      `json:"display"`
	Latest  *time.Time `json:"-"`
}

// PledgeService stores and serves pledge records.
type PledgeService struct {
	DB          *gorm.DB
	Mirror      Mirror
	CountOffset int64
	Logger      zerolog.Logger
}

// Upsert writes every record in one transaction, keyed on pledge_id. Only
// the columns a record carries are overwritten.
func (s *PledgeService) Upsert(ctx context.Context, batch []domain.PledgeUpsert) ([]domain.Pledge, error) {
	tr := otel.Tracer("services/PledgeService")
	ctx, span := tr.Start(ctx, "Upsert", trace.WithAttributes(attribute.Int("batch.size", len(batch))))
	defer span.End()

	for _, u := range batch {
		if strings.TrimSpace(u.PledgeID) == "" {
			return nil, ErrMissingPledgeID
		}
	}

	out := make([]domain.Pledge, 0, len(batch))
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range batch {
			p, err := repo.UpsertPledge(ctx, tx, u)
			if err != nil {
				return err
			}
			out = append(out, *p)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repo.ErrMissingPledgeID) {
			return nil, ErrMissingPledgeID
		}
		return nil, err
	}

	if s.Mirror != nil {
		for i := range out {
			if merr := s.Mirror.PutPledge(ctx, &out[i]); merr != nil {
				mirrorFailures.Inc()
				s.Logger.Warn().Err(merr).Str("pledge_id", out[i].PledgeID).Msg("pledge mirror write failed")
			}
		}
	}
	return out, nil
}

// Get returns one pledge.
func (s *PledgeService) Get(ctx context.Context, pledgeID string) (*domain.Pledge, error) {
	p, err := repo.GetPledge(ctx, s.DB, pledgeID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPledgeNotFound
	}
	return p, err
}

// Count returns the number of pledges and the display figure.
func (s *PledgeService) Count(ctx context.Context) (PledgeCount, error) {
	n, latest, err := repo.PledgesStats(ctx, s.DB)
	if err != nil {
		return PledgeCount{}, err
	}
	return PledgeCount{Total: n, Display: n + s.CountOffset, Latest: latest}, nil
}

// CertificateURL returns the stored certificate URL, preferring the PDF.
func (s *PledgeService) CertificateURL(ctx context.Context, pledgeID string) (string, error) {
	p, err := s.Get(ctx, pledgeID)
	if err != nil {
		return "", err
	}
	for _, u := range []string{p.CertificatePDFURL, p.CertificateImageURL} {
		if redirectable(u) {
			return u, nil
		}
	}
	return "", ErrNoStoredFile
}

// SelfieURL returns the stored selfie URL.
func (s *PledgeService) SelfieURL(ctx context.Context, pledgeID string) (string, error) {
	p, err := s.Get(ctx, pledgeID)
	if err != nil {
		return "", err
	}
	if !redirectable(p.SelfieURL) {
		return "", ErrNoStoredFile
	}
	return p.SelfieURL, nil
}

// redirectable rejects empty values and the inline fallbacks (data: and
// local: references) that no client can follow.
func redirectable(u string) bool {
	u = strings.TrimSpace(u)
	return u != "" && !strings.HasPrefix(u, "data:") && !strings.HasPrefix(u, "local:")
}
