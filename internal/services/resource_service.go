// Package services – ResourceService
//
// This file implements ResourceService, which manages the shared items a
// circle's members can claim. Any active member may register a resource; only
// its creator may edit or deactivate it, and deactivation is refused while
// claims remain active so schedules are never silently orphaned.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/events"
	"github.com/circleshare/go-share-backend/internal/repo"
)

// ResourceService provides resource-level operations inside a circle.
type ResourceService struct {
	DB  *gorm.DB
	Bus *events.Bus

	// NameMaxLen caps stored resource names by rune length.
	NameMaxLen int
}

// NewResourceService constructs a ResourceService with sane defaults.
func NewResourceService(db *gorm.DB, bus *events.Bus) *ResourceService {
	return &ResourceService{DB: db, Bus: bus, NameMaxLen: 120}
}

// Create registers a resource in circleID on behalf of creatorID, who must be
// an active member.
func (s *ResourceService) Create(ctx context.Context, creatorID, circleID, name, description, category string) (*domain.Resource, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrInvalidResourceName
	}
	name = clipRunes(name, s.NameMaxLen)

	if _, err := repo.GetCircle(ctx, s.DB, circleID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, err
	}
	ok, err := repo.IsActiveMember(ctx, s.DB, circleID, creatorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	res, err := repo.CreateResource(ctx, s.DB, circleID, creatorID, name,
		strings.TrimSpace(description), strings.TrimSpace(strings.ToLower(category)))
	if err != nil {
		return nil, err
	}
	if s.Bus != nil {
		s.Bus.Publish(events.Event{Type: events.TypeResourceUpdated, CircleID: circleID, Payload: res})
	}
	return res, nil
}

// Get returns a resource visible to an active member of its circle.
// Deactivated resources stay readable so historical claims keep context.
func (s *ResourceService) Get(ctx context.Context, userID, resourceID string) (*domain.Resource, error) {
	res, err := repo.GetResource(ctx, s.DB, resourceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	ok, err := repo.IsActiveMember(ctx, s.DB, res.CircleID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return res, nil
}

// ListPage returns a page of a circle's active resources, newest first,
// restricted to members. It returns the total count for pagination.
func (s *ResourceService) ListPage(ctx context.Context, userID, circleID string, page, pageSize int) ([]domain.Resource, int64, error) {
	if _, err := repo.GetCircle(ctx, s.DB, circleID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrCircleNotFound
		}
		return nil, 0, err
	}
	ok, err := repo.IsActiveMember(ctx, s.DB, circleID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrNotMember
	}

	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	total, err := repo.CountResources(ctx, s.DB, circleID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Resource{}, 0, nil
	}
	items, err := repo.ListResourcesPage(ctx, s.DB, circleID, offset, pageSize)
	return items, total, err
}

// Update edits a resource's descriptive fields. Only the creator may update,
// and the owning circle never changes. Blank name keeps the current one.
func (s *ResourceService) Update(ctx context.Context, userID, resourceID, name, description, category string) (*domain.Resource, error) {
	res, err := s.creatorResource(ctx, resourceID, userID)
	if err != nil {
		return nil, err
	}

	name = normalizeName(name)
	if name == "" {
		name = res.Name
	}
	name = clipRunes(name, s.NameMaxLen)

	if err := repo.UpdateResource(ctx, s.DB, resourceID, name,
		strings.TrimSpace(description), strings.TrimSpace(strings.ToLower(category))); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}

	updated, err := repo.GetResource(ctx, s.DB, resourceID)
	if err != nil {
		return nil, err
	}
	if s.Bus != nil {
		s.Bus.Publish(events.Event{Type: events.TypeResourceUpdated, CircleID: res.CircleID, Payload: updated})
	}
	return updated, nil
}

// Deactivate retires a resource from its circle. Only the creator may do it,
// and the call is refused with ErrResourceInUse while claims are still
// active. Past claims keep referencing the retired row.
func (s *ResourceService) Deactivate(ctx context.Context, userID, resourceID string) error {
	res, err := s.creatorResource(ctx, resourceID, userID)
	if err != nil {
		return err
	}

	n, err := repo.CountActiveClaims(ctx, s.DB, resourceID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrResourceInUse
	}

	if err := repo.DeactivateResource(ctx, s.DB, resourceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrResourceNotFound
		}
		return err
	}
	if s.Bus != nil {
		s.Bus.Publish(events.Event{Type: events.TypeResourceUpdated, CircleID: res.CircleID, Payload: resourceID})
	}
	return nil
}

// creatorResource loads an active resource and verifies userID created it.
func (s *ResourceService) creatorResource(ctx context.Context, resourceID, userID string) (*domain.Resource, error) {
	res, err := repo.GetResource(ctx, s.DB, resourceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	if !res.Active {
		return nil, ErrResourceNotFound
	}
	if res.CreatorID != userID {
		return nil, ErrNotResourceCreator
	}
	return res, nil
}
