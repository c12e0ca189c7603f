package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/config"
	httpapi "github.com/tbourn/go-pledge-backend/internal/http"
	"github.com/tbourn/go-pledge-backend/internal/observability"
	"github.com/tbourn/go-pledge-backend/internal/repo"
	"github.com/tbourn/go-pledge-backend/internal/services"
	"github.com/tbourn/go-pledge-backend/internal/sysutil"
)

const (
	shutdownTimeout     = 15 * time.Second
	maintenanceInterval = 10 * time.Minute
)

func serveCommand() *cobra.Command {
	var port, assetsDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pledge certificate API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := envFrom(cmd)
			cfg := env.cfg
			cfg.Port = sysutil.FirstNonEmpty(port, cfg.Port)
			cfg.Assets.Dir = sysutil.FirstNonEmpty(assetsDir, cfg.Assets.Dir)
			return serve(cmd.Context(), cfg, env.logger)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&assetsDir, "assets", "", "templates and fonts directory (overrides ASSETS_DIR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, lg zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn().Err(err).Msg("close resources")
		}
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	deps := httpapi.Deps{
		DB:           a.db,
		Certificates: a.certs,
		Sessions:     a.sessions,
		Logger:       lg,
	}
	if a.mirror != nil {
		deps.Mirror = a.mirror
	}
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go maintain(ctx, a.db, a.sessions, lg)

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Str("api", cfg.APIBasePath).Str("storage", cfg.Storage.Backend).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.shutdown(sctx, srv)
}

// shutdown drains the beacon while the listener is still open, since the
// collaborator API is usually this server, and then stops the server.
func (a *app) shutdown(ctx context.Context, srv *http.Server) error {
	if a.beacon != nil {
		a.beacon.Close()
	}
	return srv.Shutdown(ctx)
}

// maintain purges expired idempotency records and idle sessions until ctx
// is done.
func maintain(ctx context.Context, db *gorm.DB, sessions *services.SessionRegistry, lg zerolog.Logger) {
	t := time.NewTicker(maintenanceInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				lg.Warn().Err(err).Msg("purge idempotency records")
			}
			swept := sessions.Sweep()
			lg.Debug().Int64("idempotency_purged", n).Int("sessions_swept", swept).Msg("maintenance")
		}
	}
}
