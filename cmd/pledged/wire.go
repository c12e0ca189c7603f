package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/certificate"
	"github.com/tbourn/go-pledge-backend/internal/client"
	"github.com/tbourn/go-pledge-backend/internal/config"
	"github.com/tbourn/go-pledge-backend/internal/docstore"
	"github.com/tbourn/go-pledge-backend/internal/exif"
	"github.com/tbourn/go-pledge-backend/internal/repo"
	"github.com/tbourn/go-pledge-backend/internal/services"
	"github.com/tbourn/go-pledge-backend/internal/storage"
)

// app holds the long-lived collaborators of the serve command.
type app struct {
	db       *gorm.DB
	mirror   *docstore.Store
	beacon   *client.Beacon
	certs    *services.CertificateService
	sessions *services.SessionRegistry

	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg config.Config, lg zerolog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// Relational store
	a.db, err = repo.Open(cfg.DB.Driver, cfg.DB.DSN, lg.With().Str("component", "gorm").Logger())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if sqlDB, derr := a.db.DB(); derr == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err = repo.AutoMigrate(a.db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Document mirror
	if cfg.DB.MirrorDir != "" {
		a.mirror, err = docstore.New(
			docstore.WithDir(cfg.DB.MirrorDir),
			docstore.WithLogger(lg.With().Str("component", "docstore").Logger()),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.mirror.Close)
	}

	// Object storage
	spool, err := storage.NewLocal(cfg.Storage.SpoolDir, cfg.Pipeline.PublicBaseURL+cfg.Storage.SpoolURL)
	if err != nil {
		return nil, fmt.Errorf("spool: %w", err)
	}
	store, err := a.blobStore(ctx, cfg, cfg.Storage.Backend, spool, lg)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.MirrorBackend != "" && store != nil {
		secondary, serr := a.blobStore(ctx, cfg, cfg.Storage.MirrorBackend, spool, lg)
		if serr != nil {
			return nil, serr
		}
		if secondary != nil {
			store = &storage.Mirrored{Primary: store, Secondary: secondary, Logger: lg}
		}
	}

	// Collaborator API: synchronous primary, beacon fallback
	api := client.New(cfg.Collab.BaseURL,
		client.WithTimeout(cfg.Collab.Timeout),
		client.WithLogger(lg.With().Str("component", "collab").Logger()),
	)
	a.beacon = client.NewBeacon(api, cfg.Collab.BeaconQueue, cfg.Collab.BeaconTimeout)
	lg.Debug().Str("collab", api.BaseURL()).Int("beacon_queue", cfg.Collab.BeaconQueue).Msg("collaborator client ready")
	a.closers = append(a.closers, func() error { a.beacon.Close(); return nil })

	// Certificate pipeline
	a.sessions = services.NewSessionRegistry(cfg.Pipeline.SessionTTL)
	a.certs = &services.CertificateService{
		Generator:      certificate.NewGenerator(assetSource(cfg), cfg.Location(), lg),
		Corrector:      exif.NewCorrector(lg),
		Store:          store,
		Spool:          spool,
		Pledges:        &client.TwoTier{Client: api, Beacon: a.beacon, Timeout: cfg.Collab.Timeout},
		Tracking:       api,
		DB:             a.db,
		IdempotencyTTL: cfg.IdempotencyTTL,
		PublicBaseURL:  cfg.Pipeline.PublicBaseURL,
		UploadRetries:  cfg.Pipeline.UploadRetries,
		RetryDelay:     cfg.Pipeline.RetryDelay,
		SelfieMaxSide:  cfg.Pipeline.SelfieMaxSide,
		SelfieQuality:  float32(cfg.Pipeline.SelfieQuality),
		Logger:         lg.With().Str("component", "certificates").Logger(),
	}
	return a, nil
}

// blobStore builds one storage backend. "none" yields a nil store, which
// sends certificates straight to the spool.
func (a *app) blobStore(ctx context.Context, cfg config.Config, backend string, spool *storage.LocalStore, lg zerolog.Logger) (storage.BlobStore, error) {
	sc := cfg.Storage
	switch backend {
	case "s3":
		return storage.NewS3(ctx,
			storage.WithS3Bucket(sc.Bucket),
			storage.WithS3Prefix(sc.Prefix),
			storage.WithS3Region(sc.Region),
			storage.WithS3Endpoint(sc.Endpoint),
			storage.WithS3Credentials(sc.AccessKeyID, sc.SecretAccessKey),
			storage.WithS3PublicBaseURL(sc.PublicBaseURL),
			storage.WithS3Timeout(sc.Timeout),
			storage.WithS3Logger(lg),
		)
	case "gcs":
		g, err := storage.NewGCS(ctx,
			storage.WithGCSBucket(sc.Bucket),
			storage.WithGCSPrefix(sc.Prefix),
			storage.WithGCSCredentialsFile(sc.GCSCredentialsFile),
			storage.WithGCSEndpoint(sc.GCSEndpoint),
			storage.WithGCSPublicBaseURL(sc.PublicBaseURL),
			storage.WithFirebaseURLs(sc.FirebaseURLs),
			storage.WithGCSTimeout(sc.Timeout),
			storage.WithGCSLogger(lg),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	case "local":
		return spool, nil
	}
	return nil, nil
}

// assetSource reads templates and fonts over HTTP when ASSETS_BASE_URL is
// set and from the assets directory otherwise.
func assetSource(cfg config.Config) certificate.AssetSource {
	if cfg.Assets.BaseURL != "" {
		return certificate.NewHTTPAssets(cfg.Assets.BaseURL, cfg.Assets.Version, cfg.Assets.Timeout)
	}
	return certificate.DirAssets{Dir: cfg.Assets.Dir}
}
