// Pledge HTTP handlers.
//
// This file declares the service contracts the handlers depend on and the
// Handlers type that groups the endpoints:
//   - POST /certificates            (run the certificate pipeline)
//   - POST /pledges, GET /pledges/count
//   - GET  /certificate/{pledgeId}, GET /selfie/{pledgeId}
//   - POST /track-link, GET /track-link, POST /track-conversion
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pledge-backend/internal/certificate"
	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
	"github.com/tbourn/go-pledge-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// CertificateService runs the certificate pipeline.
type CertificateService interface {
	// Run generates, persists and delivers one certificate for sess.
	Run(ctx context.Context, sess *services.Session, in services.CertificateInput, d certificate.Delivery) (*services.Result, error)
	// Replay returns the stored outcome of an earlier idempotent request.
	Replay(ctx context.Context, sessionID, key string) (*domain.Idempotency, bool)
}

// PledgeService stores and serves pledge records.
type PledgeService interface {
	Upsert(ctx context.Context, batch []domain.PledgeUpsert) ([]domain.Pledge, error)
	Count(ctx context.Context) (services.PledgeCount, error)
	CertificateURL(ctx context.Context, pledgeID string) (string, error)
	SelfieURL(ctx context.Context, pledgeID string) (string, error)
}

// TrackingService manages share links and conversions.
type TrackingService interface {
	CreateLink(ctx context.Context, pledgeID, originalPledgeID string, metadata map[string]any, createdBy string) (services.TrackLink, error)
	GetLink(ctx context.Context, trackingID string) (services.TrackLinkInfo, error)
	MarkConversion(ctx context.Context, sessionID, trackingID, pledgeID string) error
}

//
// Handler wiring
//

// DefaultMaxSelfieBytes caps an uploaded selfie.
const DefaultMaxSelfieBytes = 8 << 20

// Handlers groups the pledge HTTP endpoints.
type Handlers struct {
	certs    CertificateService
	pledges  PledgeService
	tracking TrackingService
	sessions *services.SessionRegistry

	// MaxSelfieBytes caps the selfie file or data URL payload.
	MaxSelfieBytes int64
}

// New constructs a Handlers instance bound to the given services.
func New(certs CertificateService, pledges PledgeService, tracking TrackingService, sessions *services.SessionRegistry) *Handlers {
	if sessions == nil {
		sessions = services.NewSessionRegistry(0)
	}
	return &Handlers{
		certs:          certs,
		pledges:        pledges,
		tracking:       tracking,
		sessions:       sessions,
		MaxSelfieBytes: DefaultMaxSelfieBytes,
	}
}

// session returns the pipeline session for the caller's X-Session-ID.
func (h *Handlers) session(c *gin.Context) *services.Session {
	return h.sessions.Get(middleware.SessionID(c))
}
