// Package domain defines the persistence models for circles, memberships,
// resources, and claims. These types are mapped with GORM and form the core
// data layer of the resource-sharing service.
package domain

import "time"

// User is a lightweight identity record. Identity is client-supplied (there
// is no authentication beyond link-sharing), so the ID is an opaque string
// chosen by the client, not a generated UUID. A user may belong to any
// number of circles.
type User struct {
	ID          string    `json:"id"           gorm:"type:varchar(64);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Circle is a named, link-shared group of trusted users. The slug is the
// shareable invite token: URL-safe, unique, derived from the name plus a
// random suffix, assigned once at creation and never changed.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: human-readable display name.
//   - Slug: unique URL-safe invite slug (immutable after creation).
//   - Description: optional free text.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Circle struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null"`
	Slug        string    `json:"slug"        gorm:"type:varchar(128);not null;uniqueIndex:ux_circle_slug"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Circle.
func (Circle) TableName() string { return "circles" }

// Membership relates a user to a circle. The (circle_id, user_id) pair is
// unique; leaving a circle flips Active to false and rejoining re-activates
// the same row, which makes Join idempotent.
type Membership struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	CircleID  string    `json:"circle_id" gorm:"type:char(36);not null;uniqueIndex:ux_membership_circle_user,priority:1"`
	UserID    string    `json:"user_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_membership_circle_user,priority:2;index:idx_user_memberships"`
	Active    bool      `json:"active"    gorm:"not null;default:true"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Circle is the owning group. Memberships are cascade-deleted if their
	// circle is removed.
	Circle Circle `json:"-" gorm:"foreignKey:CircleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Membership.
func (Membership) TableName() string { return "memberships" }

// Resource is a shareable item registered within a circle. A resource
// belongs to exactly one circle for its entire lifetime. Deletion is always
// soft (Active=false) because claims keep back-references to the resource.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - CircleID: owning circle; immutable after creation.
//   - CreatorID: the member who registered the item.
//   - Name / Description / Category: descriptive metadata.
//   - Active: soft-delete flag; inactive resources reject new claims.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Resource struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	CircleID    string    `json:"circle_id"   gorm:"type:char(36);not null;index:idx_circle_resources"`
	CreatorID   string    `json:"creator_id"  gorm:"type:varchar(64);not null"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Category    string    `json:"category,omitempty"    gorm:"type:varchar(64)"`
	Active      bool      `json:"active"      gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Circle is the owning group. The relation is load-bearing: claims are
	// authorized against the resource's circle.
	Circle Circle `json:"-" gorm:"foreignKey:CircleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Resource.
func (Resource) TableName() string { return "resources" }

// Claim is a time-bounded reservation of a resource by a user. Intervals are
// closed-open: [StartTime, EndTime). For a fixed resource the set of claims
// with status "active" must be pairwise non-overlapping; that invariant is
// enforced by the scheduler (services.ClaimService), never by direct writes.
//
// Status is monotonic: active → completed (return) or active → cancelled.
// There is no transition out of a terminal state.
//
// Recurrence is stored as metadata only (IsRecurring, RecurringPattern);
// no instance expansion happens anywhere in the core.
type Claim struct {
	ID               string     `json:"id"          gorm:"type:char(36);primaryKey"`
	ResourceID       string     `json:"resource_id" gorm:"type:char(36);not null;index:idx_resource_claims,priority:1"`
	UserID           string     `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_user_claims"`
	StartTime        time.Time  `json:"start_time"  gorm:"not null"`
	EndTime          time.Time  `json:"end_time"    gorm:"not null"`
	IsRecurring      bool       `json:"is_recurring" gorm:"not null;default:false"`
	RecurringPattern string     `json:"recurring_pattern,omitempty" gorm:"type:varchar(16)"`
	Status           string     `json:"status"      gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','completed','cancelled');index:idx_resource_claims,priority:2"`
	Notes            string     `json:"notes,omitempty" gorm:"type:text"`
	ReturnedAt       *time.Time `json:"returned_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Resource is the reserved item. The FK is RESTRICT on delete: resources
	// referenced by claims are only ever soft-deleted.
	Resource Resource `json:"-" gorm:"foreignKey:ResourceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Claim.
func (Claim) TableName() string { return "claims" }
