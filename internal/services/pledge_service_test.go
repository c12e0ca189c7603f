package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeMirror struct {
	pledges []string
	links   []string
	err     error
}

func (m *fakeMirror) PutPledge(_ context.Context, p *domain.Pledge) error {
	m.pledges = append(m.pledges, p.PledgeID)
	return m.err
}

func (m *fakeMirror) PutTrackingLink(_ context.Context, l *domain.TrackingLink) error {
	m.links = append(m.links, l.TrackingID)
	return m.err
}

const (
	pidA = "AANIRBHA-2025-AAAAAA-0"
	pidB = "AANIRBHA-2025-BBBBBB-0"
)

func TestPledgeService_UpsertBatchAndMirror(t *testing.T) {
	m := &fakeMirror{}
	s := &PledgeService{DB: newTestDB(t), Mirror: m, CountOffset: DefaultCountOffset, Logger: zerolog.Nop()}
	ctx := context.Background()

	out, err := s.Upsert(ctx, []domain.PledgeUpsert{
		domain.UpsertFromForm(pidA, domain.PledgeForm{Name: "A"}, "en"),
		domain.UpsertFromForm(pidB, domain.PledgeForm{Name: "B"}, "hi"),
	})
	if err != nil || len(out) != 2 {
		t.Fatalf("Upsert = (%d, %v)", len(out), err)
	}
	if len(m.pledges) != 2 {
		t.Fatalf("mirror saw %v", m.pledges)
	}

	c, err := s.Count(ctx)
	if err != nil || c.Total != 2 || c.Display != 2+DefaultCountOffset || c.Latest == nil {
		t.Fatalf("Count = (%+v, %v)", c, err)
	}
}

func TestPledgeService_MirrorFailureDoesNotFail(t *testing.T) {
	s := &PledgeService{DB: newTestDB(t), Mirror: &fakeMirror{err: errors.New("disk full")}, Logger: zerolog.Nop()}
	if _, err := s.Upsert(context.Background(), []domain.PledgeUpsert{{PledgeID: pidA, Name: domain.Ptr("A")}}); err != nil {
		t.Fatalf("mirror failure must not fail the upsert: %v", err)
	}
	if _, err := s.Get(context.Background(), pidA); err != nil {
		t.Fatalf("primary row missing: %v", err)
	}
}

func TestPledgeService_MissingIDRejectsWholeBatch(t *testing.T) {
	s := &PledgeService{DB: newTestDB(t), Logger: zerolog.Nop()}
	_, err := s.Upsert(context.Background(), []domain.PledgeUpsert{{PledgeID: pidA}, {PledgeID: " "}})
	if !errors.Is(err, ErrMissingPledgeID) {
		t.Fatalf("expected ErrMissingPledgeID, got %v", err)
	}
	if _, err := s.Get(context.Background(), pidA); !errors.Is(err, ErrPledgeNotFound) {
		t.Fatalf("no row may be written, got %v", err)
	}
}

func TestPledgeService_FileURLs(t *testing.T) {
	s := &PledgeService{DB: newTestDB(t), Logger: zerolog.Nop()}
	ctx := context.Background()
	_, err := s.Upsert(ctx, []domain.PledgeUpsert{
		{PledgeID: pidA, CertificateImageURL: domain.Ptr("https://cdn/c.png"), SelfieURL: domain.Ptr("data:image/png;base64,AA==")},
		{PledgeID: pidB, CertificatePDFURL: domain.Ptr("local:certificates/b.pdf")},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if u, err := s.CertificateURL(ctx, pidA); err != nil || u != "https://cdn/c.png" {
		t.Fatalf("CertificateURL(A) = (%q, %v)", u, err)
	}
	if _, err := s.SelfieURL(ctx, pidA); !errors.Is(err, ErrNoStoredFile) {
		t.Fatalf("inline selfie must not redirect, got %v", err)
	}
	if _, err := s.CertificateURL(ctx, pidB); !errors.Is(err, ErrNoStoredFile) {
		t.Fatalf("local reference must not redirect, got %v", err)
	}
	if _, err := s.CertificateURL(ctx, "missing"); !errors.Is(err, ErrPledgeNotFound) {
		t.Fatalf("expected ErrPledgeNotFound, got %v", err)
	}
}
