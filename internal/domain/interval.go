// Package domain – interval semantics and the claim state machine.
//
// This file is the single source of truth for the overlap rule. Every
// conflict decision in the system (request validation, availability queries,
// the repository's overlap SQL) must agree with Overlaps; the SQL in
// repo.FindOverlappingClaims is the same predicate expressed in WHERE form.
package domain

import "time"

// Claim status values. Initial status is active; completed and cancelled are
// terminal.
const (
	ClaimStatusActive    = "active"
	ClaimStatusCompleted = "completed"
	ClaimStatusCancelled = "cancelled"
)

// Recurrence patterns accepted when IsRecurring is set.
const (
	RecurringWeekly  = "weekly"
	RecurringMonthly = "monthly"
)

// Overlaps reports whether the closed-open intervals [aStart, aEnd) and
// [bStart, bEnd) share at least one instant. Adjacent intervals
// (aEnd == bStart or bEnd == aStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ValidInterval reports whether [start, end) is a well-formed, non-empty
// interval.
func ValidInterval(start, end time.Time) bool {
	return start.Before(end)
}

// ValidRecurringPattern reports whether p is an accepted recurrence pattern.
func ValidRecurringPattern(p string) bool {
	return p == RecurringWeekly || p == RecurringMonthly
}

// CanTransition reports whether a claim may move from one status to another.
// The machine is monotonic: the only legal transitions are
// active→completed and active→cancelled.
func CanTransition(from, to string) bool {
	if from != ClaimStatusActive {
		return false
	}
	return to == ClaimStatusCompleted || to == ClaimStatusCancelled
}

// Terminal reports whether a status permits no further transitions.
func Terminal(status string) bool {
	return status == ClaimStatusCompleted || status == ClaimStatusCancelled
}

// ConflictsWith reports whether a candidate interval on the claim's resource
// would collide with this claim. Only active claims participate in conflict
// detection; completed and cancelled claims no longer reserve their window.
func (c *Claim) ConflictsWith(start, end time.Time) bool {
	if c.Status != ClaimStatusActive {
		return false
	}
	return Overlaps(start, end, c.StartTime, c.EndTime)
}
