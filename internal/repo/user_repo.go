// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/circleshare/go-share-backend/internal/domain"
)

// UpsertUser creates the user row on first sight and refreshes DisplayName
// and LastSeenAt on every subsequent call. Identity is client-supplied, so
// this is the only write path for users.
func UpsertUser(ctx context.Context, db *gorm.DB, id, displayName string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		ID:          id,
		DisplayName: displayName,
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	assign := map[string]any{"last_seen_at": now}
	if displayName != "" {
		assign["display_name"] = displayName
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(assign),
		}).
		Create(u).Error
	if err != nil {
		return nil, err
	}
	return GetUser(ctx, db, id)
}

// GetUser fetches a user by ID, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchUser bumps LastSeenAt without altering the profile. Missing users are
// ignored; presence tracking is best effort.
func TouchUser(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_seen_at", time.Now().UTC()).Error
}
