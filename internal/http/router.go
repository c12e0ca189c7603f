// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation and session ids, logging/redaction, panic recovery,
// metrics, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → Session → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Certificate generation gets its own body cap and a tighter rate limit
package httpapi

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/config"
	"github.com/tbourn/go-pledge-backend/internal/http/docs"
	"github.com/tbourn/go-pledge-backend/internal/http/handlers"
	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
	"github.com/tbourn/go-pledge-backend/internal/repo"
	"github.com/tbourn/go-pledge-backend/internal/services"
)

// jsonBodyLimit caps bodies on the JSON endpoints.
const jsonBodyLimit = 1 << 20

// Deps are the long-lived collaborators the routes are built on.
type Deps struct {
	DB *gorm.DB
	// Certificates runs the certificate pipeline.
	Certificates handlers.CertificateService
	// Mirror receives best-effort copies of pledge and tracking rows. Optional.
	Mirror services.Mirror
	// Sessions is shared with the pipeline; nil creates one from config.
	Sessions *services.SessionRegistry
	Logger   zerolog.Logger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, static assets, health and metrics
// endpoints, and then mounts the pledge API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Session: pledge session id (re-entrancy, idempotency, rate keys)
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per session/IP, bypass on replay)
//  9. CORS and Security headers
//
// Body limits and gzip are applied per route group.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Pledge session
	r.Use(middleware.Session())

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, sessionID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per session/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Accept-Language",
			middleware.HeaderSessionID, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "Content-Disposition", "Retry-After",
			middleware.HeaderSessionID, handlers.HeaderPledgeID, handlers.HeaderCertificateURL,
			handlers.HeaderTrackingLink, handlers.HeaderDegraded,
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Certificate templates, fonts and spooled files
	mountStatic(r, cfg)

	// Dependency injection: services ← repo/db/mirror
	sessions := deps.Sessions
	if sessions == nil {
		sessions = services.NewSessionRegistry(cfg.Pipeline.SessionTTL)
	}
	pledgeSvc := &services.PledgeService{
		DB:          db,
		Mirror:      deps.Mirror,
		CountOffset: cfg.Pipeline.CountOffset,
		Logger:      deps.Logger,
	}
	trackSvc := &services.TrackingService{
		DB:      db,
		Mirror:  deps.Mirror,
		BaseURL: cfg.Pipeline.PublicBaseURL,
		Logger:  deps.Logger,
	}
	h := handlers.New(deps.Certificates, pledgeSvc, trackSvc, sessions)
	h.MaxSelfieBytes = cfg.Pipeline.MaxSelfieBytes

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)

	// Certificates: multipart bodies up to the selfie cap, tighter rate limit,
	// no gzip (PNG, JPEG and PDF are already compressed).
	certRL := middleware.NewRateLimiter(cfg.CertRateRPS, cfg.CertRateBurst, middleware.KeyBySessionOrIP())
	api.POST("/certificates",
		limitBody(cfg.Pipeline.MaxSelfieBytes+jsonBodyLimit),
		certRL.Handler(),
		withTimeout(cfg.Pipeline.GenerateTimeout),
		h.CreateCertificate,
	)

	// Pledge upserts may carry the selfie inline as a data URL when its
	// upload failed.
	api.POST("/pledges",
		limitBody(pledgeBodyLimit(cfg.Pipeline.MaxSelfieBytes)),
		gzip.Gzip(gzip.DefaultCompression),
		h.UpsertPledges,
	)

	j := api.Group("", limitBody(jsonBodyLimit), gzip.Gzip(gzip.DefaultCompression))
	{
		// Pledges
		j.GET("/pledges/count", h.PledgeCount)
		j.GET("/certificate/:pledgeId", h.CertificateRedirect)
		j.GET("/selfie/:pledgeId", h.SelfieRedirect)
		j.GET("/form-options", h.FormOptions)

		// Tracking
		j.POST("/track-link", h.CreateTrackLink)
		j.GET("/track-link", h.GetTrackLink)
		j.POST("/track-conversion", h.TrackConversion)
	}
}

// mountStatic serves the template backgrounds and fonts from the assets
// directory and spooled certificates from the spool directory.
func mountStatic(r *gin.Engine, cfg config.Config) {
	if dir := cfg.Assets.Dir; dir != "" {
		r.StaticFile("/default-format.jpg", filepath.Join(dir, "default-format.jpg"))
		r.StaticFile("/default-format.pdf", filepath.Join(dir, "default-format.pdf"))
		r.Static("/fonts", filepath.Join(dir, "fonts"))
	}
	if cfg.Storage.SpoolDir != "" && cfg.Storage.SpoolURL != "/" {
		r.Static(cfg.Storage.SpoolURL, cfg.Storage.SpoolDir)
	}
}

// pledgeBodyLimit fits one base64 selfie of maxSelfie bytes plus the
// regular JSON allowance.
func pledgeBodyLimit(maxSelfie int64) int64 {
	if maxSelfie <= 0 {
		maxSelfie = handlers.DefaultMaxSelfieBytes
	}
	return (maxSelfie+2)/3*4 + jsonBodyLimit
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// withTimeout bounds the request context; d <= 0 leaves it unbounded.
func withTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
