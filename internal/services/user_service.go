// Package services – UserService
//
// Identity is caller-supplied (the X-User-ID header), so user rows are lazily
// materialized the first time an identity shows up and refreshed on each
// request.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/repo"
)

// UserService owns user profile rows.
type UserService struct {
	DB *gorm.DB

	// DisplayNameMaxLen caps stored display names by rune length.
	DisplayNameMaxLen int
}

// NewUserService constructs a UserService with sane defaults.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db, DisplayNameMaxLen: 80}
}

// Ensure upserts the user row for id, updating last_seen_at and, when
// displayName is non-blank, the display name.
func (s *UserService) Ensure(ctx context.Context, id, displayName string) (*domain.User, error) {
	displayName = clipRunes(normalizeName(displayName), s.DisplayNameMaxLen)
	return repo.UpsertUser(ctx, s.DB, strings.TrimSpace(id), displayName)
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Touch bumps last_seen_at for id without touching the profile. Missing rows
// are ignored.
func (s *UserService) Touch(ctx context.Context, id string) error {
	return repo.TouchUser(ctx, s.DB, id)
}
