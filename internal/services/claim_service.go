// Package services – ClaimService
//
// This file implements ClaimService, the application-level component that owns
// the claim lifecycle: requesting a window on a shared resource, checking
// availability, rescheduling, returning, and cancelling. The central rule is
// interval exclusivity: at most one active claim may occupy any instant on a
// resource, with windows treated as closed-open so back-to-back claims touch
// without conflicting.
//
// Concurrency: conflict checks and inserts run inside a transaction, and calls
// that mutate a resource's schedule are additionally serialized through a
// striped per-resource lock so two simultaneous requests for the same window
// cannot both pass the check. Claims on different resources never contend.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include resource/user identifiers and the requested window where applicable.
package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/events"
	"github.com/circleshare/go-share-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// claimStripes is the size of the per-resource lock table. Claims for the
// same resource always hash to the same stripe.
const claimStripes = 64

// ClaimService coordinates claim persistence and conflict detection.
type ClaimService struct {
	DB  *gorm.DB
	Bus *events.Bus

	// MaxNotesRunes caps stored notes by rune length. Zero disables the cap.
	MaxNotesRunes int

	locks [claimStripes]sync.Mutex
}

// NewClaimService constructs a ClaimService with sane defaults.
func NewClaimService(db *gorm.DB, bus *events.Bus) *ClaimService {
	return &ClaimService{DB: db, Bus: bus, MaxNotesRunes: 500}
}

// lockFor returns the stripe lock guarding resourceID's schedule.
func (s *ClaimService) lockFor(resourceID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(resourceID))
	return &s.locks[h.Sum32()%claimStripes]
}

// Request creates an active claim for userID on resourceID over [start, end).
//
// Semantics and validation:
//   - start must be strictly before end; otherwise ErrInvalidInterval.
//   - resourceID must exist and be active; otherwise ErrResourceNotFound.
//   - userID must be an active member of the resource's circle; otherwise
//     ErrNotMember.
//   - recurringPattern, when non-empty, must be "weekly" or "monthly" and
//     marks the claim as recurring; otherwise ErrInvalidPattern. The pattern
//     is stored for clients; conflict checks cover the stored window only.
//   - The window must not overlap any active claim on the resource; a
//     conflict yields an *OverlapError carrying the blocking claim IDs.
//
// Concurrency & atomicity:
//   - The conflict check and insert run inside a transaction under the
//     resource's stripe lock, so concurrent identical requests resolve to
//     exactly one winner.
func (s *ClaimService) Request(ctx context.Context, userID, resourceID string, start, end time.Time, recurringPattern, notes string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Request",
		trace.WithAttributes(
			attribute.String("resource.id", resourceID),
			attribute.String("user.id", userID),
			attribute.String("claim.start", start.UTC().Format(time.RFC3339)),
			attribute.String("claim.end", end.UTC().Format(time.RFC3339)),
		),
	)
	defer span.End()

	start, end = start.UTC(), end.UTC()
	if !domain.ValidInterval(start, end) {
		return nil, ErrInvalidInterval
	}
	recurringPattern = strings.TrimSpace(recurringPattern)
	if recurringPattern != "" && !domain.ValidRecurringPattern(recurringPattern) {
		return nil, ErrInvalidPattern
	}

	res, err := s.activeResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, res.CircleID, userID); err != nil {
		return nil, err
	}

	mu := s.lockFor(resourceID)
	mu.Lock()
	defer mu.Unlock()

	var created *domain.Claim
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		blocking, err := repo.FindOverlappingClaims(ctx, tx, resourceID, start, end, "")
		if err != nil {
			return err
		}
		if len(blocking) > 0 {
			return overlapError(resourceID, blocking)
		}

		c, err := repo.CreateClaim(ctx, tx, &domain.Claim{
			ResourceID:       resourceID,
			UserID:           userID,
			StartTime:        start,
			EndTime:          end,
			IsRecurring:      recurringPattern != "",
			RecurringPattern: recurringPattern,
			Notes:            s.clipNotes(notes),
		})
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.TypeClaimCreated, res.CircleID, created)
	return created, nil
}

// IsAvailable reports whether [start, end) is free on resourceID, along with
// the IDs of any active claims occupying it. excludeClaimID, when non-empty,
// is ignored in the check (the reschedule path).
func (s *ClaimService) IsAvailable(ctx context.Context, resourceID string, start, end time.Time, excludeClaimID string) (bool, []string, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "IsAvailable",
		trace.WithAttributes(attribute.String("resource.id", resourceID)),
	)
	defer span.End()

	start, end = start.UTC(), end.UTC()
	if !domain.ValidInterval(start, end) {
		return false, nil, ErrInvalidInterval
	}
	if _, err := s.activeResource(ctx, resourceID); err != nil {
		return false, nil, err
	}

	blocking, err := repo.FindOverlappingClaims(ctx, s.DB, resourceID, start, end, excludeClaimID)
	if err != nil {
		return false, nil, err
	}
	if len(blocking) == 0 {
		return true, nil, nil
	}
	return false, claimIDs(blocking), nil
}

// Reschedule moves an active claim owned by userID to a new window. The
// claim's own current window never blocks the move. Terminal claims are
// immutable (ErrClaimNotActive). A blank notes argument keeps the existing
// notes; to move the window only, pass the claim's current notes.
func (s *ClaimService) Reschedule(ctx context.Context, userID, claimID string, start, end time.Time, notes string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Reschedule",
		trace.WithAttributes(
			attribute.String("claim.id", claimID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	start, end = start.UTC(), end.UTC()
	if !domain.ValidInterval(start, end) {
		return nil, ErrInvalidInterval
	}

	claim, err := s.ownedClaim(ctx, claimID, userID)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimStatusActive {
		return nil, ErrClaimNotActive
	}
	if notes == "" {
		notes = claim.Notes
	}

	mu := s.lockFor(claim.ResourceID)
	mu.Lock()
	defer mu.Unlock()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		blocking, err := repo.FindOverlappingClaims(ctx, tx, claim.ResourceID, start, end, claimID)
		if err != nil {
			return err
		}
		if len(blocking) > 0 {
			return overlapError(claim.ResourceID, blocking)
		}
		if err := repo.RescheduleClaim(ctx, tx, claimID, start, end, s.clipNotes(notes)); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrClaimNotActive
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		return nil, err
	}
	s.publishForResource(ctx, events.TypeClaimUpdated, claim.ResourceID, updated)
	return updated, nil
}

// Return completes an active claim owned by userID and releases the window.
//
// A return before the window starts is rejected with ErrReturnBeforeStart;
// cancel the claim instead. An early return clamps the stored end time to the
// return instant so the remainder of the window becomes claimable; a late
// return keeps the original end. ReturnedAt records when the return happened
// either way.
func (s *ClaimService) Return(ctx context.Context, userID, claimID string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Return",
		trace.WithAttributes(
			attribute.String("claim.id", claimID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	claim, err := s.ownedClaim(ctx, claimID, userID)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimStatusActive {
		return nil, ErrClaimNotActive
	}

	now := time.Now().UTC()
	if now.Before(claim.StartTime) {
		return nil, ErrReturnBeforeStart
	}
	effectiveEnd := now
	if now.After(claim.EndTime) {
		effectiveEnd = claim.EndTime
	}

	if err := repo.CompleteClaim(ctx, s.DB, claimID, effectiveEnd, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotActive
		}
		return nil, err
	}

	updated, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		return nil, err
	}
	s.publishForResource(ctx, events.TypeClaimReturned, claim.ResourceID, updated)
	return updated, nil
}

// Cancel cancels an active claim owned by userID and releases the window.
// Unlike Return, cancellation is allowed before the window starts. Terminal
// claims yield ErrClaimNotActive.
func (s *ClaimService) Cancel(ctx context.Context, userID, claimID string) (*domain.Claim, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(
			attribute.String("claim.id", claimID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	claim, err := s.ownedClaim(ctx, claimID, userID)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimStatusActive {
		return nil, ErrClaimNotActive
	}

	if err := repo.CancelClaim(ctx, s.DB, claimID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotActive
		}
		return nil, err
	}

	updated, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		return nil, err
	}
	s.publishForResource(ctx, events.TypeClaimCancelled, claim.ResourceID, updated)
	return updated, nil
}

// Get returns a claim by ID, visible to any active member of the resource's
// circle.
func (s *ClaimService) Get(ctx context.Context, userID, claimID string) (*domain.Claim, error) {
	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	res, err := repo.GetResource(ctx, s.DB, claim.ResourceID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, res.CircleID, userID); err != nil {
		return nil, err
	}
	return claim, nil
}

// ListForResource returns a page of claims against a resource, newest window
// first, restricted to members of the resource's circle. activeOnly narrows
// the listing to claims still occupying the schedule.
func (s *ClaimService) ListForResource(ctx context.Context, userID, resourceID string, activeOnly bool, page, pageSize int) ([]domain.Claim, int64, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "ListForResource",
		trace.WithAttributes(
			attribute.String("resource.id", resourceID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	res, err := s.activeResource(ctx, resourceID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.requireMember(ctx, res.CircleID, userID); err != nil {
		return nil, 0, err
	}

	if activeOnly {
		items, err := repo.ListActiveClaims(ctx, s.DB, resourceID)
		if err != nil {
			return nil, 0, err
		}
		return items, int64(len(items)), nil
	}

	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	total, err := repo.CountClaims(ctx, s.DB, resourceID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Claim{}, 0, nil
	}
	items, err := repo.ListClaimsPage(ctx, s.DB, resourceID, offset, pageSize)
	return items, total, err
}

// ListForUser returns a page of the user's own claims across all resources,
// newest window first.
func (s *ClaimService) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.Claim, int64, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "ListForUser",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	total, err := repo.CountUserClaims(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Claim{}, 0, nil
	}
	items, err := repo.ListUserClaimsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// --- internal helpers ---

// activeResource loads a resource and maps missing or deactivated rows to
// ErrResourceNotFound.
func (s *ClaimService) activeResource(ctx context.Context, resourceID string) (*domain.Resource, error) {
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
	return res, nil
}

// ownedClaim loads a claim and verifies userID created it.
func (s *ClaimService) ownedClaim(ctx context.Context, claimID, userID string) (*domain.Claim, error) {
	claim, err := repo.GetClaim(ctx, s.DB, claimID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if claim.UserID != userID {
		return nil, ErrNotClaimOwner
	}
	return claim, nil
}

// requireMember verifies that userID is an active member of circleID.
func (s *ClaimService) requireMember(ctx context.Context, circleID, userID string) error {
	ok, err := repo.IsActiveMember(ctx, s.DB, circleID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// clipNotes truncates notes to the configured maximum rune length.
func (s *ClaimService) clipNotes(notes string) string {
	notes = strings.TrimSpace(notes)
	if s.MaxNotesRunes > 0 {
		runes := []rune(notes)
		if len(runes) > s.MaxNotesRunes {
			return string(runes[:s.MaxNotesRunes])
		}
	}
	return notes
}

// publish emits an event when a bus is configured.
func (s *ClaimService) publish(t events.Type, circleID string, claim *domain.Claim) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(events.Event{Type: t, CircleID: circleID, Payload: claim})
}

// publishForResource resolves the resource's circle before emitting. Event
// delivery is best-effort; a lookup failure only drops the notification.
func (s *ClaimService) publishForResource(ctx context.Context, t events.Type, resourceID string, claim *domain.Claim) {
	if s.Bus == nil {
		return
	}
	res, err := repo.GetResource(ctx, s.DB, resourceID)
	if err != nil {
		return
	}
	s.publish(t, res.CircleID, claim)
}

// normalizePage applies defaults for invalid page/pageSize.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize
}

// overlapError builds an *OverlapError from the blocking claims.
func overlapError(resourceID string, blocking []domain.Claim) error {
	return &OverlapError{ResourceID: resourceID, BlockingIDs: claimIDs(blocking)}
}

// claimIDs projects claims to their IDs.
func claimIDs(claims []domain.Claim) []string {
	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ID)
	}
	return ids
}
