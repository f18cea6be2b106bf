package services

import (
	"context"
	"errors"
	"testing"
)

func TestUserEnsure(t *testing.T) {
	db := newTestDB(t)
	s := NewUserService(db)
	ctx := context.Background()

	u, err := s.Ensure(ctx, "u1", "  Alex   P ")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if u.DisplayName != "Alex P" {
		t.Fatalf("display name not normalized: %q", u.DisplayName)
	}
	created := u.CreatedAt

	// Blank display name keeps the stored one; last_seen advances.
	again, err := s.Ensure(ctx, "u1", "")
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if again.DisplayName != "Alex P" {
		t.Fatalf("blank name overwrote: %q", again.DisplayName)
	}
	if !again.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt changed on upsert: %v vs %v", again.CreatedAt, created)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user: got %v", err)
	}
}
