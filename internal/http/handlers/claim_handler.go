// Claim HTTP handlers.
//
// This file exposes REST endpoints for the claim scheduler:
//   - POST /resources/{id}/claims       (request a window)
//   - GET  /resources/{id}/claims       (list claims, paginated, ETag support)
//   - GET  /resources/{id}/availability (probe a window)
//   - GET  /claims                      (current user's claims)
//   - GET  /claims/{id}                 (get)
//   - PUT  /claims/{id}                 (reschedule)
//   - POST /claims/{id}/return          (complete and release)
//   - POST /claims/{id}/cancel          (cancel and release)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (RFC 3339 timestamps, pagination bounds)
//   - delegate to application services (ClaimService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// claim exists for (user, resource, key), the handler returns that recorded
// claim and sets `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/repo"
	"github.com/circleshare/go-share-backend/internal/services"
)

//
// DTOs
//

// RequestClaimRequest is the JSON payload for claiming a time window.
//
// Timestamps are RFC 3339 and interpreted as a closed-open interval
// [start_time, end_time): two claims may touch end-to-start without
// conflicting.
type RequestClaimRequest struct {
	// StartTime is the inclusive window start.
	StartTime time.Time `json:"start_time" binding:"required" example:"2025-06-07T09:00:00Z"`
	// EndTime is the exclusive window end; must be after StartTime.
	EndTime time.Time `json:"end_time" binding:"required" example:"2025-06-07T17:00:00Z"`
	// RecurringPattern optionally marks the claim as recurring ("weekly" or "monthly").
	RecurringPattern string `json:"recurring_pattern" example:"weekly"`
	// Notes optionally explains the claim to other members.
	Notes string `json:"notes" example:"Pressure-washing the deck"`
}

// RescheduleClaimRequest is the JSON payload for moving a claim's window.
type RescheduleClaimRequest struct {
	StartTime time.Time `json:"start_time" binding:"required" example:"2025-06-08T09:00:00Z"`
	EndTime   time.Time `json:"end_time" binding:"required" example:"2025-06-08T12:00:00Z"`
	// Notes optionally replaces the claim notes; blank keeps the existing ones.
	Notes string `json:"notes"`
}

// AvailabilityResponse reports whether a window is free and, when it is not,
// which active claims occupy it.
type AvailabilityResponse struct {
	Available           bool     `json:"available"`
	ConflictingClaimIDs []string `json:"conflicting_claim_ids,omitempty"`
}

// ListClaimsResponse wraps a page of claims and pagination information.
type ListClaimsResponse struct {
	Claims     []domain.Claim `json:"claims"`
	Pagination Pagination     `json:"pagination"`
}

//
// Handlers
//

// RequestClaim godoc
// @ID          requestClaim
// @Summary     Claim a time window on a resource
// @Description Creates an active claim over [start_time, end_time) if no other active claim overlaps it.
// @Description On conflict the response carries the blocking claim IDs.
// @Description Supports idempotency via the Idempotency-Key header (same key → same claim).
// @Tags        Claims
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Resource ID (UUID)"     format(uuid)
// @Param       body             body    handlers.RequestClaimRequest  true  "Claim window payload"
//
// @Success     201  {object}  domain.Claim
// @Failure     400  {object}  handlers.ErrorResponse "Invalid interval or pattern"
// @Failure     403  {object}  handlers.ErrorResponse "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse "Resource not found"
// @Failure     409  {object}  handlers.ErrorResponse "Window already claimed"
// @Router      /resources/{id}/claims [post]
func (h *Handlers) RequestClaim(c *gin.Context) {
	ctx := c.Request.Context()
	resourceID := c.Param("id")
	currentUser := userID(c)

	var req RequestClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_time and end_time required (RFC 3339)")
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := idempotencyKey(c)
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, currentUser, resourceID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetClaim(ctx, h.db, rec.ClaimID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, prev)
				return
			}
		}
	}

	claim, err := h.claimSvc.Request(ctx, currentUser, resourceID, req.StartTime, req.EndTime, req.RecurringPattern, req.Notes)
	if err != nil {
		h.failClaim(c, err)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.db != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, currentUser, resourceID, idemKey, claim.ID, http.StatusCreated, h.idemTTL)
	}

	ok(c, http.StatusCreated, claim)
}

// Availability godoc
// @ID          availability
// @Summary     Probe a window for availability
// @Description Reports whether [start, end) is free on the resource and, when occupied, the blocking claim IDs.
// @Description Pass exclude_claim to ignore one claim (when probing a reschedule).
// @Tags        Claims
// @Produce     json
//
// @Param       id             path   string  true  "Resource ID (UUID)"  format(uuid)
// @Param       start          query  string  true  "Window start (RFC 3339)"  example(2025-06-07T09:00:00Z)
// @Param       end            query  string  true  "Window end (RFC 3339)"    example(2025-06-07T17:00:00Z)
// @Param       exclude_claim  query  string  false "Claim ID to ignore"       format(uuid)
//
// @Success     200  {object} handlers.AvailabilityResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid interval"
// @Failure     404  {object} handlers.ErrorResponse "Resource not found"
// @Router      /resources/{id}/availability [get]
func (h *Handlers) Availability(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start must be RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end must be RFC 3339")
		return
	}

	available, blocking, err := h.claimSvc.IsAvailable(c.Request.Context(), c.Param("id"), start, end, c.Query("exclude_claim"))
	if err != nil {
		h.failClaim(c, err)
		return
	}
	ok(c, http.StatusOK, AvailabilityResponse{Available: available, ConflictingClaimIDs: blocking})
}

// ListClaims godoc
// @ID          listClaims
// @Summary     List claims on a resource
// @Description Returns a page of the resource's claims, newest window first. Members only.
// @Description Pass active=true for just the claims still occupying the schedule.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       id             path    string  true  "Resource ID (UUID)"          format(uuid)
// @Param       active         query   bool    false "Only active claims"          default(false)
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListClaimsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     403  {object} handlers.ErrorResponse "Not a member"
// @Failure     404  {object} handlers.ErrorResponse "Resource not found"
// @Router      /resources/{id}/claims [get]
func (h *Handlers) ListClaims(c *gin.Context) {
	ctx := c.Request.Context()
	resourceID := c.Param("id")

	// ETag pre-check (best effort). Status transitions bump updated_at, so
	// the tag changes whenever the schedule does.
	if h.db != nil {
		count, maxTS, err := repo.ClaimsStats(ctx, h.db, resourceID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"claims:%s:%d:%d"`, resourceID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)
	activeOnly := strings.EqualFold(c.Query("active"), "true")

	items, total, err := h.claimSvc.ListForResource(ctx, userID(c), resourceID, activeOnly, page, pageSize)
	if err != nil {
		h.failClaim(c, err)
		return
	}
	ok(c, http.StatusOK, ListClaimsResponse{
		Claims:     items,
		Pagination: paginate(page, pageSize, total),
	})
}

// ListMyClaims godoc
// @ID          listMyClaims
// @Summary     List the current user's claims
// @Description Returns a page of the caller's claims across all resources, newest window first.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListClaimsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /claims [get]
func (h *Handlers) ListMyClaims(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.claimSvc.ListForUser(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListClaimsResponse{
		Claims:     items,
		Pagination: paginate(page, pageSize, total),
	})
}

// GetClaim godoc
// @ID          getClaim
// @Summary     Get a claim
// @Description Returns a claim, visible to members of the resource's circle.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.Claim
// @Failure     403  {object} handlers.ErrorResponse "Not a member"
// @Failure     404  {object} handlers.ErrorResponse "Claim not found"
// @Router      /claims/{id} [get]
func (h *Handlers) GetClaim(c *gin.Context) {
	claim, err := h.claimSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.failClaim(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// RescheduleClaim godoc
// @ID          rescheduleClaim
// @Summary     Reschedule a claim
// @Description Moves an active claim to a new window. Owner only; the claim's own window never blocks the move.
// @Tags        Claims
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"        format(uuid)
// @Param       body       body    handlers.RescheduleClaimRequest  true  "New window"
//
// @Success     200  {object} domain.Claim
// @Failure     400  {object} handlers.ErrorResponse "Invalid interval"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Claim not found"
// @Failure     409  {object} handlers.ErrorResponse "New window already claimed, or claim not active"
// @Router      /claims/{id} [put]
func (h *Handlers) RescheduleClaim(c *gin.Context) {
	var req RescheduleClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_time and end_time required (RFC 3339)")
		return
	}

	claim, err := h.claimSvc.Reschedule(c.Request.Context(), userID(c), c.Param("id"), req.StartTime, req.EndTime, req.Notes)
	if err != nil {
		h.failClaim(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// ReturnClaim godoc
// @ID          returnClaim
// @Summary     Return a claimed resource
// @Description Completes an active claim and releases its window. Owner only. An early return frees the remainder of the window; a return before the window starts is refused (cancel instead).
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.Claim
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Claim not found"
// @Failure     409  {object} handlers.ErrorResponse "Claim not active or not started"
// @Router      /claims/{id}/return [post]
func (h *Handlers) ReturnClaim(c *gin.Context) {
	claim, err := h.claimSvc.Return(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.failClaim(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// CancelClaim godoc
// @ID          cancelClaim
// @Summary     Cancel a claim
// @Description Cancels an active claim and releases its window. Owner only; allowed before the window starts.
// @Tags        Claims
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Claim ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.Claim
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Claim not found"
// @Failure     409  {object} handlers.ErrorResponse "Claim not active"
// @Router      /claims/{id}/cancel [post]
func (h *Handlers) CancelClaim(c *gin.Context) {
	claim, err := h.claimSvc.Cancel(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.failClaim(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// idempotencyKey extracts an idempotency key if an upstream middleware has
// already validated/stashed it. The fallback behavior reads the
// "Idempotency-Key" header directly when no dedicated middleware exists.
func idempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

// failClaim maps claim service errors to HTTP responses.
func (h *Handlers) failClaim(c *gin.Context, err error) {
	var oe *services.OverlapError
	switch {
	case errors.As(err, &oe):
		failConflict(c, "resource is claimed during the requested window", oe.BlockingIDs)
	case errors.Is(err, services.ErrClaimNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "claim not found")
	case errors.Is(err, services.ErrResourceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case errors.Is(err, services.ErrNotMember):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this circle")
	case errors.Is(err, services.ErrNotClaimOwner):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not the owner of this claim")
	case errors.Is(err, services.ErrClaimNotActive):
		fail(c, http.StatusConflict, ErrCodeClaimNotActive, "claim is not active")
	case errors.Is(err, services.ErrReturnBeforeStart):
		fail(c, http.StatusConflict, ErrCodeNotStarted, "claim has not started yet; cancel it instead")
	case errors.Is(err, services.ErrInvalidInterval):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_time must be before end_time")
	case errors.Is(err, services.ErrInvalidPattern):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recurring_pattern must be weekly or monthly")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
