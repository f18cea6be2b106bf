package services

import (
	"context"
	"errors"
	"testing"
)

func TestResourceCreate_MembersOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.items.Create(ctx, "u2", f.circle.ID, "  Ladder  ", "8ft", "Tools")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Name != "Ladder" || res.Category != "tools" {
		t.Fatalf("fields not normalized: %+v", res)
	}
	if res.CreatorID != "u2" || res.CircleID != f.circle.ID || !res.Active {
		t.Fatalf("unexpected resource: %+v", res)
	}

	if _, err := f.items.Create(ctx, "stranger", f.circle.ID, "Drill", "", ""); !errors.Is(err, ErrNotMember) {
		t.Fatalf("non-member create: got %v", err)
	}
	if _, err := f.items.Create(ctx, "u1", "missing", "Drill", "", ""); !errors.Is(err, ErrCircleNotFound) {
		t.Fatalf("missing circle: got %v", err)
	}
	if _, err := f.items.Create(ctx, "u1", f.circle.ID, "  ", "", ""); !errors.Is(err, ErrInvalidResourceName) {
		t.Fatalf("blank name: got %v", err)
	}
}

func TestResourceGet_MemberGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.items.Get(ctx, "u2", f.resource.ID)
	if err != nil || got.ID != f.resource.ID {
		t.Fatalf("member get: %v", err)
	}
	if _, err := f.items.Get(ctx, "stranger", f.resource.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("stranger get: got %v", err)
	}
	if _, err := f.items.Get(ctx, "u1", "missing"); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("missing resource: got %v", err)
	}
}

func TestResourceUpdate_CreatorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.items.Update(ctx, "u2", f.resource.ID, "Washer", "", ""); !errors.Is(err, ErrNotResourceCreator) {
		t.Fatalf("non-creator update: got %v", err)
	}

	updated, err := f.items.Update(ctx, "u1", f.resource.ID, "Washer 3000", "gas powered", "garden")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Washer 3000" || updated.Description != "gas powered" || updated.Category != "garden" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.CircleID != f.circle.ID {
		t.Fatal("circle binding must never change")
	}

	// Blank name keeps the current one.
	kept, err := f.items.Update(ctx, "u1", f.resource.ID, "", "freshly serviced", "garden")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if kept.Name != "Washer 3000" {
		t.Fatalf("blank name overwrote: %q", kept.Name)
	}
}

func TestResourceDeactivate_RefusedWhileClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.claims.Request(ctx, "u2", f.resource.ID, at(9), at(17), "", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := f.items.Deactivate(ctx, "u2", f.resource.ID); !errors.Is(err, ErrNotResourceCreator) {
		t.Fatalf("non-creator deactivate: got %v", err)
	}
	if err := f.items.Deactivate(ctx, "u1", f.resource.ID); !errors.Is(err, ErrResourceInUse) {
		t.Fatalf("deactivate with active claim: got %v", err)
	}

	if _, err := f.claims.Cancel(ctx, "u2", claim.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.items.Deactivate(ctx, "u1", f.resource.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// Retired resources reject new claims but stay readable.
	if _, err := f.claims.Request(ctx, "u2", f.resource.ID, at(9), at(10), "", ""); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("claim on retired resource: got %v", err)
	}
	got, err := f.items.Get(ctx, "u2", f.resource.ID)
	if err != nil {
		t.Fatalf("retired resource must stay readable: %v", err)
	}
	if got.Active {
		t.Fatal("resource still active after deactivation")
	}

	if err := f.items.Deactivate(ctx, "u1", f.resource.ID); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("double deactivate: got %v", err)
	}
}

func TestResourceListPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"Ladder", "Drill", "Mower"} {
		if _, err := f.items.Create(ctx, "u1", f.circle.ID, name, "", ""); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	items, total, err := f.items.ListPage(ctx, "u2", f.circle.ID, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Fixture seeds one resource, so four in total.
	if total != 4 || len(items) != 2 {
		t.Fatalf("page = %d/%d, want 2 of 4", len(items), total)
	}

	if _, _, err := f.items.ListPage(ctx, "stranger", f.circle.ID, 1, 10); !errors.Is(err, ErrNotMember) {
		t.Fatalf("stranger list: got %v", err)
	}
}
