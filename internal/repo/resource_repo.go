// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Resource
// model. Resources are never hard-deleted: Deactivate flips the active flag
// and existing claims keep their back-reference.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
)

// CreateResource inserts a new active resource into a circle.
func CreateResource(ctx context.Context, db *gorm.DB, circleID, creatorID, name, description, category string) (*domain.Resource, error) {
	r := &domain.Resource{
		ID:          uuid.NewString(),
		CircleID:    circleID,
		CreatorID:   creatorID,
		Name:        name,
		Description: description,
		Category:    category,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetResource fetches a resource by ID regardless of its active flag, or
// ErrNotFound. Callers that require an active resource check the flag.
func GetResource(ctx context.Context, db *gorm.DB, id string) (*domain.Resource, error) {
	var r domain.Resource
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountResources returns the number of active resources in a circle.
func CountResources(ctx context.Context, db *gorm.DB, circleID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Resource{}).
		Where("circle_id = ? AND active = ?", circleID, true).
		Count(&total).Error
	return total, err
}

// ListResourcesPage returns a paginated slice of a circle's active
// resources, most recently created first.
func ListResourcesPage(ctx context.Context, db *gorm.DB, circleID string, offset, limit int) ([]domain.Resource, error) {
	var out []domain.Resource
	err := db.WithContext(ctx).
		Where("circle_id = ? AND active = ?", circleID, true).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateResource rewrites the descriptive fields of a resource. The circle
// binding is immutable and is deliberately not updatable here. Returns
// ErrNotFound when no row matches.
func UpdateResource(ctx context.Context, db *gorm.DB, id, name, description, category string) error {
	res := db.WithContext(ctx).
		Model(&domain.Resource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":        name,
			"description": description,
			"category":    category,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateResource soft-deletes a resource. The guard on active makes a
// second deactivation report ErrNotFound rather than silently succeed.
func DeactivateResource(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Resource{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
