// Package services defines the business logic for circles, resources, and
// claims. This file centralizes common service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import (
	"errors"
	"fmt"
	"strings"
)

// Circle and membership errors.
var (
	// ErrCircleNotFound indicates that the requested circle does not exist.
	ErrCircleNotFound = errors.New("circle not found")

	// ErrNotMember is returned when a user attempts to act inside a circle
	// they have not joined (or have left).
	ErrNotMember = errors.New("not a member of this circle")

	// ErrInvalidCircleName is returned when a circle name is blank after
	// normalization.
	ErrInvalidCircleName = errors.New("circle name is empty")
)

// Resource errors.
var (
	// ErrResourceNotFound indicates that the requested resource does not
	// exist or has been deactivated.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrInvalidResourceName is returned when a resource name is blank after
	// normalization.
	ErrInvalidResourceName = errors.New("resource name is empty")

	// ErrNotResourceCreator is returned when someone other than the creator
	// attempts to update or deactivate a resource.
	ErrNotResourceCreator = errors.New("only the resource creator may do this")

	// ErrResourceInUse is returned when a resource cannot be deactivated
	// because claims are still active against it.
	ErrResourceInUse = errors.New("resource has active claims")
)

// Claim errors.
var (
	// ErrClaimNotFound indicates that the requested claim does not exist.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrNotClaimOwner is returned when a user attempts to modify a claim
	// they did not create.
	ErrNotClaimOwner = errors.New("not the owner of this claim")

	// ErrClaimNotActive is returned when a lifecycle operation targets a
	// claim that has already been completed or cancelled.
	ErrClaimNotActive = errors.New("claim is not active")

	// ErrInvalidInterval is returned when a claim window does not satisfy
	// start < end.
	ErrInvalidInterval = errors.New("start time must be before end time")

	// ErrInvalidPattern is returned when a recurring claim names a pattern
	// outside the allowed set.
	ErrInvalidPattern = errors.New("recurring pattern must be weekly or monthly")

	// ErrReturnBeforeStart is returned when a return is attempted before the
	// claim window has begun.
	ErrReturnBeforeStart = errors.New("claim has not started yet")

	// ErrClaimConflict is the sentinel matched by OverlapError; use
	// errors.Is against it to detect scheduling conflicts generically.
	ErrClaimConflict = errors.New("claim conflicts with an existing claim")
)

// User errors.
var (
	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// OverlapError reports a scheduling conflict together with the IDs of the
// active claims occupying the requested window. It matches ErrClaimConflict
// under errors.Is so callers can branch without inspecting the type.
type OverlapError struct {
	ResourceID  string
	BlockingIDs []string
}

// Error implements the error interface.
func (e *OverlapError) Error() string {
	return fmt.Sprintf("resource %s is claimed during the requested window (conflicts: %s)",
		e.ResourceID, strings.Join(e.BlockingIDs, ", "))
}

// Is reports whether target is ErrClaimConflict.
func (e *OverlapError) Is(target error) bool {
	return target == ErrClaimConflict
}
