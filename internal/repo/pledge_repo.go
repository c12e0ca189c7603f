// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Pledge
// model.
//
// Functions:
//
//   - UpsertPledge(ctx, db, u) -> *domain.Pledge, error
//     Inserts or updates by pledge_id, writing only the columns u carries.
//
//   - GetPledge(ctx, db, pledgeID) -> *domain.Pledge, error
//     Fetches one pledge, or ErrNotFound.
//
//   - CountPledges(ctx, db) -> int64, error
package repo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-pledge-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrMissingPledgeID is returned for an upsert without a key.
var ErrMissingPledgeID = errors.New("pledge_id is required")

// pledgeRow builds the row inserted when the pledge does not exist yet.
func pledgeRow(pledgeID string, cols map[string]string, now time.Time) *domain.Pledge {
	p := &domain.Pledge{ID: uuid.NewString(), PledgeID: pledgeID, Lang: "en", CreatedAt: now, UpdatedAt: now}
	set := map[string]*string{
		"name":                  &p.Name,
		"mobile":                &p.Mobile,
		"district":              &p.District,
		"constituency":          &p.Constituency,
		"village":               &p.Village,
		"gender":                &p.Gender,
		"profession":            &p.Profession,
		"lang":                  &p.Lang,
		"selfie_url":            &p.SelfieURL,
		"certificate_pdf_url":   &p.CertificatePDFURL,
		"certificate_image_url": &p.CertificateImageURL,
		"selfie_status":         &p.SelfieStatus,
		"certificate_status":    &p.CertificateStatus,
		"storage_location":      &p.StorageLocation,
	}
	for col, v := range cols {
		if dst, ok := set[col]; ok {
			*dst = v
		}
	}
	return p
}

// UpsertPledge inserts the pledge or, on a pledge_id conflict, updates only
// the columns carried by u (plus updated_at). It runs as one statement so
// concurrent upserts of the same pledge cannot create two rows.
func UpsertPledge(ctx context.Context, db *gorm.DB, u domain.PledgeUpsert) (*domain.Pledge, error) {
	id := strings.TrimSpace(u.PledgeID)
	if id == "" {
		return nil, ErrMissingPledgeID
	}
	now := time.Now().UTC()
	cols := u.Columns()

	update := make([]string, 0, len(cols)+1)
	for col := range cols {
		update = append(update, col)
	}
	sort.Strings(update)
	update = append(update, "updated_at")

	row := pledgeRow(id, cols, now)
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pledge_id"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return GetPledge(ctx, db, id)
}

// GetPledge returns the pledge with the given public id.
func GetPledge(ctx context.Context, db *gorm.DB, pledgeID string) (*domain.Pledge, error) {
	var p domain.Pledge
	if err := db.WithContext(ctx).Where("pledge_id = ?", pledgeID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPledges returns the number of stored pledges.
func CountPledges(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Pledge{}).Count(&n).Error
	return n, err
}
