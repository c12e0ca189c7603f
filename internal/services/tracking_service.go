// Package services – TrackingService
//
// TrackingService issues one share link per pledge and attributes pledges to
// the clicks that led to them. Clicks themselves are recorded elsewhere.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/repo"
)

const trackingIDLen = 12

// TrackLink is a tracking link as returned to callers.
type TrackLink struct {
	TrackingID   string `json:"trackingId"`
	TrackingLink string `json:"trackingLink"`
	Existing     bool   `json:"existing,omitempty"`
}

// TrackLinkInfo is a tracking link with its click counters.
type TrackLinkInfo struct {
	Link        *domain.TrackingLink `json:"link"`
	Clicks      int64                `json:"clicks"`
	Conversions int64                `json:"conversions"`
}

// TrackingService manages tracking links and conversions.
type TrackingService struct {
	DB     *gorm.DB
	Mirror Mirror
	// BaseURL prefixes /track/{id} in returned links.
	BaseURL string
	// NewID overrides tracking id generation in tests.
	NewID  func() string
	Logger zerolog.Logger
}

func (s *TrackingService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:trackingIDLen]
}

// LinkURL is the public URL of a tracking id.
func LinkURL(base, trackingID string) string {
	return strings.TrimRight(base, "/") + "/track/" + trackingID
}

// CreateLink returns the pledge's existing link or creates one.
// originalPledgeID defaults to pledgeID.
func (s *TrackingService) CreateLink(ctx context.Context, pledgeID, originalPledgeID string, metadata map[string]any, createdBy string) (TrackLink, error) {
	tr := otel.Tracer("services/TrackingService")
	ctx, span := tr.Start(ctx, "CreateLink", trace.WithAttributes(attribute.String("pledge.id", pledgeID)))
	defer span.End()

	pledgeID = strings.TrimSpace(pledgeID)
	if pledgeID == "" {
		return TrackLink{}, ErrMissingPledgeID
	}
	if l, err := repo.GetTrackingLinkByPledge(ctx, s.DB, pledgeID); err == nil {
		return TrackLink{TrackingID: l.TrackingID, TrackingLink: LinkURL(s.BaseURL, l.TrackingID), Existing: true}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return TrackLink{}, err
	}

	meta := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return TrackLink{}, err
		}
		meta = string(b)
	}

	var (
		l   *domain.TrackingLink
		err error
	)
	for attempt := 0; attempt < 3; attempt++ {
		l, err = repo.CreateTrackingLink(ctx, s.DB, s.newID(), pledgeID, originalPledgeID, meta, createdBy)
		if !errors.Is(err, repo.ErrDuplicate) {
			break
		}
		// Either a concurrent request created the pledge's link or the
		// random id collided.
		if existing, gerr := repo.GetTrackingLinkByPledge(ctx, s.DB, pledgeID); gerr == nil {
			return TrackLink{TrackingID: existing.TrackingID, TrackingLink: LinkURL(s.BaseURL, existing.TrackingID), Existing: true}, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		return TrackLink{}, err
	}

	if s.Mirror != nil {
		if merr := s.Mirror.PutTrackingLink(ctx, l); merr != nil {
			mirrorFailures.Inc()
			s.Logger.Warn().Err(merr).Str("tracking_id", l.TrackingID).Msg("tracking link mirror write failed")
		}
	}
	return TrackLink{TrackingID: l.TrackingID, TrackingLink: LinkURL(s.BaseURL, l.TrackingID)}, nil
}

// GetLink returns a tracking link with its click counters.
func (s *TrackingService) GetLink(ctx context.Context, trackingID string) (TrackLinkInfo, error) {
	l, err := repo.GetTrackingLink(ctx, s.DB, trackingID)
	if errors.Is(err, repo.ErrNotFound) {
		return TrackLinkInfo{}, ErrTrackingLinkNotFound
	}
	if err != nil {
		return TrackLinkInfo{}, err
	}
	clicks, conv, err := repo.TrackingStats(ctx, s.DB, l.ID)
	if err != nil {
		return TrackLinkInfo{}, err
	}
	return TrackLinkInfo{Link: l, Clicks: clicks, Conversions: conv}, nil
}

// MarkConversion flags the latest click of the session (or of the tracking
// link) as converted to pledgeID.
func (s *TrackingService) MarkConversion(ctx context.Context, sessionID, trackingID, pledgeID string) error {
	tr := otel.Tracer("services/TrackingService")
	ctx, span := tr.Start(ctx, "MarkConversion", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("pledge.id", pledgeID),
	))
	defer span.End()

	if sessionID == "" && trackingID == "" {
		return ErrMissingTrackingKeys
	}
	linkID := ""
	if trackingID != "" {
		l, err := repo.GetTrackingLink(ctx, s.DB, trackingID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTrackingLinkNotFound
		}
		if err != nil {
			return err
		}
		linkID = l.ID
	}
	_, err := repo.MarkConversion(ctx, s.DB, sessionID, linkID, pledgeID)
	if errors.Is(err, repo.ErrNoClick) {
		return ErrClickNotFound
	}
	return err
}
