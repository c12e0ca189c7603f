// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for tracking
// links and conversion marking on link clicks.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/domain"
)

// ErrNoClick is returned when no click matches a conversion request.
var ErrNoClick = errors.New("click not found")

// GetTrackingLink returns the link with the given public tracking id.
func GetTrackingLink(ctx context.Context, db *gorm.DB, trackingID string) (*domain.TrackingLink, error) {
	var l domain.TrackingLink
	if err := db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetTrackingLinkByPledge returns the link created for a pledge.
func GetTrackingLinkByPledge(ctx context.Context, db *gorm.DB, pledgeID string) (*domain.TrackingLink, error) {
	var l domain.TrackingLink
	if err := db.WithContext(ctx).Where("pledge_id = ?", pledgeID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateTrackingLink inserts a link. It returns ErrDuplicate when the
// pledge or the tracking id already has one.
func CreateTrackingLink(ctx context.Context, db *gorm.DB, trackingID, pledgeID, originalPledgeID, metadata, createdBy string) (*domain.TrackingLink, error) {
	if originalPledgeID == "" {
		originalPledgeID = pledgeID
	}
	if metadata == "" {
		metadata = "{}"
	}
	l := &domain.TrackingLink{
		ID:               uuid.NewString(),
		TrackingID:       trackingID,
		PledgeID:         pledgeID,
		OriginalPledgeID: originalPledgeID,
		Metadata:         metadata,
		CreatedBy:        createdBy,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// RecordClick stores a visit through a tracking link.
func RecordClick(ctx context.Context, db *gorm.DB, linkID, sessionID string, at time.Time) (*domain.LinkClick, error) {
	c := &domain.LinkClick{
		ID:             uuid.NewString(),
		TrackingLinkID: linkID,
		SessionID:      sessionID,
		ClickedAt:      at.UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// MarkConversion flags the latest click of a session and/or link as
// converted to pledgeID. At least one of sessionID and linkID is required.
func MarkConversion(ctx context.Context, db *gorm.DB, sessionID, linkID, pledgeID string) (*domain.LinkClick, error) {
	if sessionID == "" && linkID == "" {
		return nil, ErrNoClick
	}
	var out *domain.LinkClick
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.LinkClick{}).Order("clicked_at DESC").Limit(1)
		if sessionID != "" {
			q = q.Where("session_id = ?", sessionID)
		}
		if linkID != "" {
			q = q.Where("tracking_link_id = ?", linkID)
		}
		var c domain.LinkClick
		if err := q.First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoClick
			}
			return err
		}
		if err := tx.Model(&c).Updates(map[string]any{
			"converted_to_pledge":  true,
			"conversion_pledge_id": pledgeID,
		}).Error; err != nil {
			return err
		}
		c.ConvertedToPledge = true
		c.ConversionPledgeID = &pledgeID
		out = &c
		return nil
	})
	return out, err
}
