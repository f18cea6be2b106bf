package repo

import (
	"context"
	"testing"
	"time"
)

func TestUpsertUser_CreatesThenRefreshes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := UpsertUser(ctx, db, "u1", "Alex")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if u.DisplayName != "Alex" || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user: %#v", u)
	}

	// Blank name keeps the stored one, but last_seen moves forward
	time.Sleep(10 * time.Millisecond)
	again, err := UpsertUser(ctx, db, "u1", "")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.DisplayName != "Alex" {
		t.Fatalf("blank name overwrote display name: %#v", again)
	}
	if !again.LastSeenAt.After(u.LastSeenAt) {
		t.Fatalf("last_seen not refreshed: %v vs %v", again.LastSeenAt, u.LastSeenAt)
	}
	if !again.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("created_at changed on upsert: %v vs %v", again.CreatedAt, u.CreatedAt)
	}

	// A new name replaces the stored one
	renamed, err := UpsertUser(ctx, db, "u1", "Alexandra")
	if err != nil || renamed.DisplayName != "Alexandra" {
		t.Fatalf("rename: %#v err=%v", renamed, err)
	}
}

func TestGetUser_Missing(t *testing.T) {
	db := newTestDB(t)
	if _, err := GetUser(context.Background(), db, "ghost"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestTouchUser_BumpsLastSeen_IgnoresMissing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := UpsertUser(ctx, db, "u1", "Alex")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := TouchUser(ctx, db, "u1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	after, err := GetUser(ctx, db, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !after.LastSeenAt.After(u.LastSeenAt) {
		t.Fatalf("last_seen not bumped: %v vs %v", after.LastSeenAt, u.LastSeenAt)
	}

	// Touching an unknown user is a no-op, not an error
	if err := TouchUser(ctx, db, "ghost"); err != nil {
		t.Fatalf("touch missing: %v", err)
	}
}
