// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-pledge-backend/internal/domain"
)

// PledgesStats returns the number of pledges and the greatest UpdatedAt
// among them. With no rows the count is 0 and maxUpdatedAt is nil.
func PledgesStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Pledge{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Pledge{}).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// TrackingStats returns the clicks and conversions recorded for a link.
func TrackingStats(ctx context.Context, db *gorm.DB, linkID string) (clicks, conversions int64, err error) {
	q := db.WithContext(ctx).Model(&domain.LinkClick{}).Where("tracking_link_id = ?", linkID)
	if err = q.Count(&clicks).Error; err != nil {
		return 0, 0, err
	}
	err = db.WithContext(ctx).Model(&domain.LinkClick{}).
		Where("tracking_link_id = ? AND converted_to_pledge = ?", linkID, true).
		Count(&conversions).Error
	return clicks, conversions, err
}
