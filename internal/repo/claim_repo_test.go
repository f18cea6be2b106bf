package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/circleshare/go-share-backend/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedResource(t *testing.T, db *gorm.DB) *domain.Resource {
	t.Helper()
	circle, err := CreateCircle(context.Background(), db, "Garage", fmt.Sprintf("garage-%s", uuid.NewString()), "")
	if err != nil {
		t.Fatalf("seed circle: %v", err)
	}
	res, err := CreateResource(context.Background(), db, circle.ID, "u-owner", "pressure washer", "", "tools")
	if err != nil {
		t.Fatalf("seed resource: %v", err)
	}
	return res
}

func at(h int) time.Time {
	return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
}

func seedClaim(t *testing.T, db *gorm.DB, resourceID, userID string, start, end time.Time) *domain.Claim {
	t.Helper()
	c, err := CreateClaim(context.Background(), db, &domain.Claim{
		ResourceID: resourceID,
		UserID:     userID,
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	return c
}

func TestFindOverlappingClaims(t *testing.T) {
	db := newTestDB(t)
	res := seedResource(t, db)
	ctx := context.Background()

	booked := seedClaim(t, db, res.ID, "u1", at(9), at(17))

	// Contained interval conflicts.
	hits, err := FindOverlappingClaims(ctx, db, res.ID, at(12), at(13), "")
	if err != nil {
		t.Fatalf("overlap query: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != booked.ID {
		t.Fatalf("expected the booked claim to block, got %d hits", len(hits))
	}

	// Adjacent interval does not conflict.
	hits, err = FindOverlappingClaims(ctx, db, res.ID, at(17), at(18), "")
	if err != nil {
		t.Fatalf("overlap query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("adjacent interval must not conflict, got %d hits", len(hits))
	}

	// Excluding the claim itself clears the conflict (reschedule path).
	hits, err = FindOverlappingClaims(ctx, db, res.ID, at(9), at(17), booked.ID)
	if err != nil {
		t.Fatalf("overlap query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("excluded claim must not block, got %d hits", len(hits))
	}

	// Other resources never interfere.
	other := seedResource(t, db)
	hits, err = FindOverlappingClaims(ctx, db, other.ID, at(9), at(17), "")
	if err != nil {
		t.Fatalf("overlap query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("other resource must be free, got %d hits", len(hits))
	}
}

func TestFindOverlappingClaims_IgnoresTerminal(t *testing.T) {
	db := newTestDB(t)
	res := seedResource(t, db)
	ctx := context.Background()

	c := seedClaim(t, db, res.ID, "u1", at(9), at(17))
	if err := CancelClaim(ctx, db, c.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	hits, err := FindOverlappingClaims(ctx, db, res.ID, at(9), at(17), "")
	if err != nil {
		t.Fatalf("overlap query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("cancelled claim must not block, got %d hits", len(hits))
	}
}

func TestCompleteClaim_GuardedTransition(t *testing.T) {
	db := newTestDB(t)
	res := seedResource(t, db)
	ctx := context.Background()

	c := seedClaim(t, db, res.ID, "u1", at(9), at(17))
	now := at(11)

	if err := CompleteClaim(ctx, db, c.ID, now, now); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	got, err := GetClaim(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.ClaimStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if !got.EndTime.Equal(now) || got.ReturnedAt == nil || !got.ReturnedAt.Equal(now) {
		t.Fatalf("effective end not stamped: end=%v returned=%v", got.EndTime, got.ReturnedAt)
	}

	// Second transition hits the status guard.
	if err := CompleteClaim(ctx, db, c.ID, now, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second complete should miss the guard, got %v", err)
	}
	if err := CancelClaim(ctx, db, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel after complete should miss the guard, got %v", err)
	}
}

func TestCancelClaim_TwiceFails(t *testing.T) {
	db := newTestDB(t)
	res := seedResource(t, db)
	ctx := context.Background()

	c := seedClaim(t, db, res.ID, "u1", at(9), at(10))
	if err := CancelClaim(ctx, db, c.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := CancelClaim(ctx, db, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second cancel should fail with ErrNotFound, got %v", err)
	}
}

func TestRescheduleClaim_TerminalImmutable(t *testing.T) {
	db := newTestDB(t)
	res := seedResource(t, db)
	ctx := context.Background()

	c := seedClaim(t, db, res.ID, "u1", at(9), at(10))
	if err := RescheduleClaim(ctx, db, c.ID, at(10), at(12), "moved"); err != nil {
		t.Fatalf("reschedule active: %v", err)
	}
	got, _ := GetClaim(ctx, db, c.ID)
	if !got.StartTime.Equal(at(10)) || !got.EndTime.Equal(at(12)) || got.Notes != "moved" {
		t.Fatalf("reschedule not applied: %+v", got)
	}

	if err := CancelClaim(ctx, db, c.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := RescheduleClaim(ctx, db, c.ID, at(12), at(13), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reschedule of terminal claim should fail, got %v", err)
	}
}

func TestCountActiveClaims(t *testing.T) {
	db := newTestDB(t)
	res := seedResource(t, db)
	ctx := context.Background()

	seedClaim(t, db, res.ID, "u1", at(9), at(10))
	c2 := seedClaim(t, db, res.ID, "u2", at(10), at(11))

	n, err := CountActiveClaims(ctx, db, res.ID)
	if err != nil || n != 2 {
		t.Fatalf("active count = %d (%v), want 2", n, err)
	}
	if err := CancelClaim(ctx, db, c2.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	n, err = CountActiveClaims(ctx, db, res.ID)
	if err != nil || n != 1 {
		t.Fatalf("active count after cancel = %d (%v), want 1", n, err)
	}
}

func TestListUserClaimsPage(t *testing.T) {
	db := newTestDB(t)
	res := seedResource(t, db)
	ctx := context.Background()

	seedClaim(t, db, res.ID, "u1", at(9), at(10))
	seedClaim(t, db, res.ID, "u1", at(11), at(12))
	seedClaim(t, db, res.ID, "u2", at(13), at(14))

	total, err := CountUserClaims(ctx, db, "u1")
	if err != nil || total != 2 {
		t.Fatalf("user claim count = %d (%v), want 2", total, err)
	}
	page, err := ListUserClaimsPage(ctx, db, "u1", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page len = %d, want 2", len(page))
	}
	// Newest start first.
	if !page[0].StartTime.After(page[1].StartTime) {
		t.Fatalf("expected descending start order: %v then %v", page[0].StartTime, page[1].StartTime)
	}
}
