// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Circle and
// Membership models.
//
// Membership writes use the (circle_id, user_id) unique index as the source
// of idempotence: UpsertMembership re-activates an existing row instead of
// inserting a duplicate, which is what makes rejoining a circle safe.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/circleshare/go-share-backend/internal/domain"
)

// CreateCircle inserts a new circle with its pre-computed slug.
func CreateCircle(ctx context.Context, db *gorm.DB, name, slug, description string) (*domain.Circle, error) {
	c := &domain.Circle{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCircle fetches a circle by ID, or ErrNotFound.
func GetCircle(ctx context.Context, db *gorm.DB, id string) (*domain.Circle, error) {
	var c domain.Circle
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCircleBySlug resolves an invite slug to its circle, or ErrNotFound.
func GetCircleBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Circle, error) {
	var c domain.Circle
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertMembership creates an active membership or re-activates a previously
// left one. The ON CONFLICT clause targets the (circle_id, user_id) unique
// index, so a rejoin updates the existing row in place.
func UpsertMembership(ctx context.Context, db *gorm.DB, circleID, userID string) (*domain.Membership, error) {
	now := time.Now().UTC()
	m := &domain.Membership{
		ID:       uuid.NewString(),
		CircleID: circleID,
		UserID:   userID,
		Active:   true,
		JoinedAt: now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "circle_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"active": true, "updated_at": now}),
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	// Read back so a re-activation returns the original row (original ID and
	// JoinedAt), not the discarded insert candidate.
	return GetMembership(ctx, db, circleID, userID)
}

// GetMembership fetches the membership row for (circleID, userID) regardless
// of its active flag, or ErrNotFound.
func GetMembership(ctx context.Context, db *gorm.DB, circleID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	err := db.WithContext(ctx).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IsActiveMember reports whether userID currently belongs to circleID.
func IsActiveMember(ctx context.Context, db *gorm.DB, circleID, userID string) (bool, error) {
	m, err := GetMembership(ctx, db, circleID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Active, nil
}

// DeactivateMembership marks a membership inactive. Returns ErrNotFound when
// the user has no active membership in the circle.
func DeactivateMembership(ctx context.Context, db *gorm.DB, circleID, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("circle_id = ? AND user_id = ? AND active = ?", circleID, userID, true).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMembers returns the active memberships of a circle, oldest first.
func ListMembers(ctx context.Context, db *gorm.DB, circleID string) ([]domain.Membership, error) {
	var out []domain.Membership
	err := db.WithContext(ctx).
		Where("circle_id = ? AND active = ?", circleID, true).
		Order("joined_at asc").
		Find(&out).Error
	return out, err
}

// IsUniqueViolation attempts to detect unique-constraint violations across
// drivers that may not map to gorm.ErrDuplicatedKey.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
