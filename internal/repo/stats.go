// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
)

// ResourcesStats returns aggregate metadata for a circle's active resources:
// the total number of rows and the maximum UpdatedAt timestamp among them.
// When the circle has no active resources, count is 0 and maxUpdatedAt nil.
func ResourcesStats(ctx context.Context, db *gorm.DB, circleID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Resource{}).Where("circle_id = ? AND active = ?", circleID, true)

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
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ClaimsStats returns aggregate metadata for claims against a resource: the
// total number of rows (any status) and the maximum UpdatedAt timestamp.
// Status transitions bump UpdatedAt, so the pair changes whenever a claim is
// created, rescheduled, returned, or cancelled.
func ClaimsStats(ctx context.Context, db *gorm.DB, resourceID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Claim{}).Where("resource_id = ?", resourceID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
