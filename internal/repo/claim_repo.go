// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Claim
// model, including the overlap query that backs all conflict detection.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. The scheduler (services.ClaimService)
// owns the scheduling rules; status transitions here are guarded UPDATEs so
// that a transition away from "active" is atomic at the storage layer.
//
// Error semantics:
//   - When a claim is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateClaim inserts a new active claim. The claim ID is a randomly
// generated UUID and CreatedAt is set to UTC. The caller (the scheduler) is
// responsible for having verified the interval is conflict-free inside the
// same transaction.
func CreateClaim(ctx context.Context, db *gorm.DB, c *domain.Claim) (*domain.Claim, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.ClaimStatusActive
	}
	c.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetClaim fetches a single claim by ID, or ErrNotFound.
func GetClaim(ctx context.Context, db *gorm.DB, id string) (*domain.Claim, error) {
	var c domain.Claim
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindOverlappingClaims returns the active claims on resourceID whose
// [start_time, end_time) interval overlaps [start, end), ordered by start
// time. excludeID, when non-empty, drops one claim from consideration (used
// when re-validating a claim that is being rescheduled).
//
// The WHERE clause is domain.Overlaps expressed in SQL: two closed-open
// intervals overlap iff each starts before the other ends. Keep the two in
// agreement — this query is the conflict rule the database sees.
func FindOverlappingClaims(ctx context.Context, db *gorm.DB, resourceID string, start, end time.Time, excludeID string) ([]domain.Claim, error) {
	q := db.WithContext(ctx).
		Where("resource_id = ? AND status = ?", resourceID, domain.ClaimStatusActive).
		Where("start_time < ? AND ? < end_time", end, start)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var out []domain.Claim
	err := q.Order("start_time asc").Find(&out).Error
	return out, err
}

// ListActiveClaims returns all active claims for a resource ordered by start
// time ascending.
func ListActiveClaims(ctx context.Context, db *gorm.DB, resourceID string) ([]domain.Claim, error) {
	var out []domain.Claim
	err := db.WithContext(ctx).
		Where("resource_id = ? AND status = ?", resourceID, domain.ClaimStatusActive).
		Order("start_time asc").
		Find(&out).Error
	return out, err
}

// CountClaims returns the total number of claims recorded against a resource
// (any status), for pagination.
func CountClaims(ctx context.Context, db *gorm.DB, resourceID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("resource_id = ?", resourceID).
		Count(&total).Error
	return total, err
}

// ListClaimsPage returns a paginated slice of claims for a resource, newest
// start time first. The caller computes offset and limit.
func ListClaimsPage(ctx context.Context, db *gorm.DB, resourceID string, offset, limit int) ([]domain.Claim, error) {
	var out []domain.Claim
	err := db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("start_time desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListUserClaimsPage returns a paginated slice of one user's claims across
// all resources, newest start time first.
func ListUserClaimsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Claim, error) {
	var out []domain.Claim
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountUserClaims returns the total number of claims owned by userID.
func CountUserClaims(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// CountActiveClaims returns the number of active claims on a resource. Used
// by the registry to refuse deactivating a resource that is still booked.
func CountActiveClaims(ctx context.Context, db *gorm.DB, resourceID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("resource_id = ? AND status = ?", resourceID, domain.ClaimStatusActive).
		Count(&total).Error
	return total, err
}

// CompleteClaim transitions a claim from active to completed, stamping the
// effective end and returned-at instants. The WHERE guard on status makes the
// transition atomic: if the claim is already terminal (or missing), zero rows
// are affected and ErrNotFound is returned.
func CompleteClaim(ctx context.Context, db *gorm.DB, id string, endTime, returnedAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id = ? AND status = ?", id, domain.ClaimStatusActive).
		Updates(map[string]any{
			"status":      domain.ClaimStatusCompleted,
			"end_time":    endTime,
			"returned_at": returnedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelClaim transitions a claim from active to cancelled under the same
// guarded-UPDATE semantics as CompleteClaim.
func CancelClaim(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id = ? AND status = ?", id, domain.ClaimStatusActive).
		Update("status", domain.ClaimStatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RescheduleClaim rewrites the interval and notes of an active claim. The
// status guard keeps terminal claims immutable.
func RescheduleClaim(ctx context.Context, db *gorm.DB, id string, start, end time.Time, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id = ? AND status = ?", id, domain.ClaimStatusActive).
		Updates(map[string]any{
			"start_time": start,
			"end_time":   end,
			"notes":      notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
