// Circle HTTP handlers.
//
// This file exposes REST endpoints for circles and membership:
//   - POST   /circles                (create)
//   - GET    /circles/{id}           (get)
//   - GET    /circles/slug/{slug}    (resolve an invite slug)
//   - POST   /circles/{id}/members   (join)
//   - DELETE /circles/{id}/members   (leave)
//   - GET    /circles/{id}/members   (list members)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. It also hosts the Handlers
// aggregate and the shared service contracts consumed by the other handler
// files in this package.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/events"
	"github.com/circleshare/go-share-backend/internal/services"
	"github.com/circleshare/go-share-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CircleService defines circle and membership operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CircleService interface {
	// Create starts a new circle and enrolls the creator.
	Create(ctx context.Context, creatorID, name, description string) (*domain.Circle, error)
	// Get returns a circle by ID.
	Get(ctx context.Context, circleID string) (*domain.Circle, error)
	// GetBySlug resolves an invite slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Circle, error)
	// Join enrolls a user (idempotent).
	Join(ctx context.Context, userID, circleID string) (*domain.Circle, *domain.Membership, error)
	// Leave deactivates a membership.
	Leave(ctx context.Context, userID, circleID string) error
	// Members lists active memberships, member-gated.
	Members(ctx context.Context, userID, circleID string) ([]domain.Membership, error)
	// IsMember reports active membership.
	IsMember(ctx context.Context, userID, circleID string) (bool, error)
}

// ResourceService defines resource registry operations consumed by HTTP
// handlers.
type ResourceService interface {
	Create(ctx context.Context, creatorID, circleID, name, description, category string) (*domain.Resource, error)
	Get(ctx context.Context, userID, resourceID string) (*domain.Resource, error)
	ListPage(ctx context.Context, userID, circleID string, page, pageSize int) ([]domain.Resource, int64, error)
	Update(ctx context.Context, userID, resourceID, name, description, category string) (*domain.Resource, error)
	Deactivate(ctx context.Context, userID, resourceID string) error
}

// ClaimService defines scheduling operations consumed by HTTP handlers.
type ClaimService interface {
	Request(ctx context.Context, userID, resourceID string, start, end time.Time, recurringPattern, notes string) (*domain.Claim, error)
	IsAvailable(ctx context.Context, resourceID string, start, end time.Time, excludeClaimID string) (bool, []string, error)
	Reschedule(ctx context.Context, userID, claimID string, start, end time.Time, notes string) (*domain.Claim, error)
	Return(ctx context.Context, userID, claimID string) (*domain.Claim, error)
	Cancel(ctx context.Context, userID, claimID string) (*domain.Claim, error)
	Get(ctx context.Context, userID, claimID string) (*domain.Claim, error)
	ListForResource(ctx context.Context, userID, resourceID string, activeOnly bool, page, pageSize int) ([]domain.Claim, int64, error)
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.Claim, int64, error)
}

// UserService defines profile operations consumed by HTTP handlers.
type UserService interface {
	Ensure(ctx context.Context, id, displayName string) (*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for circles, resources, claims, and users.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic. The *gorm.DB handle serves the transport-level
// concerns that bypass the services: ETag stats queries and idempotency
// records. A nil db disables both (conditional responses and replays are
// skipped; the endpoints still work).
type Handlers struct {
	circleSvc   CircleService
	resourceSvc ResourceService
	claimSvc    ClaimService
	userSvc     UserService
	bus         *events.Bus
	db          *gorm.DB
	idemTTL     time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// idemTTL bounds how long a stored Idempotency-Key keeps replaying; zero or
// negative falls back to 24h.
func New(circleSvc CircleService, resourceSvc ResourceService, claimSvc ClaimService, userSvc UserService, bus *events.Bus, db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		circleSvc:   circleSvc,
		resourceSvc: resourceSvc,
		claimSvc:    claimSvc,
		userSvc:     userSvc,
		bus:         bus,
		db:          db,
		idemTTL:     idemTTL,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateCircleRequest is the JSON payload for creating a circle.
type CreateCircleRequest struct {
	// Name labels the circle (1–80 chars).
	Name string `json:"name" binding:"required,min=1,max=80" example:"Maple Street Tool Library"`
	// Description optionally explains what the circle shares.
	Description string `json:"description" example:"Power tools for the block"`
}

// JoinCircleResponse wraps the circle and the caller's membership.
type JoinCircleResponse struct {
	Circle     *domain.Circle     `json:"circle"`
	Membership *domain.Membership `json:"membership"`
}

// ListMembersResponse wraps a circle's active memberships.
type ListMembersResponse struct {
	Members []domain.Membership `json:"members"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// paginate computes the response metadata for a page.
func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// CreateCircle godoc
// @ID          createCircle
// @Summary     Create a new circle
// @Description Creates a circle owned by the current user, enrolls them as the first member, and mints an invite slug.
// @Tags        Circles
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateCircleRequest  true  "Create circle payload"
//
// @Success     201  {object}  domain.Circle
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /circles [post]
func (h *Handlers) CreateCircle(c *gin.Context) {
	var req CreateCircleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-80 chars)")
		return
	}

	circle, err := h.circleSvc.Create(c.Request.Context(), userID(c), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCircleName) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-80 chars)")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, circle)
}

// GetCircle godoc
// @ID          getCircle
// @Summary     Get a circle
// @Description Returns a circle's profile. Members only.
// @Tags        Circles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Circle ID (UUID)"       format(uuid)
//
// @Success     200  {object}  domain.Circle
// @Failure     403  {object}  handlers.ErrorResponse "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse "Circle not found"
// @Router      /circles/{id} [get]
func (h *Handlers) GetCircle(c *gin.Context) {
	ctx := c.Request.Context()
	circleID := c.Param("id")

	circle, err := h.circleSvc.Get(ctx, circleID)
	if err != nil {
		h.failCircle(c, err)
		return
	}
	member, err := h.circleSvc.IsMember(ctx, userID(c), circleID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if !member {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this circle")
		return
	}
	ok(c, http.StatusOK, circle)
}

// ResolveSlug godoc
// @ID          resolveSlug
// @Summary     Resolve an invite slug
// @Description Resolves a shared invite slug to its circle so the holder can join. No membership required.
// @Tags        Circles
// @Produce     json
//
// @Param       slug  path  string  true  "Invite slug"  example(maple-street-tool-library-x1y2z3)
//
// @Success     200  {object}  domain.Circle
// @Failure     404  {object}  handlers.ErrorResponse "Unknown slug"
// @Router      /circles/slug/{slug} [get]
func (h *Handlers) ResolveSlug(c *gin.Context) {
	circle, err := h.circleSvc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.failCircle(c, err)
		return
	}
	ok(c, http.StatusOK, circle)
}

// JoinCircle godoc
// @ID          joinCircle
// @Summary     Join a circle
// @Description Enrolls the current user in the circle. Joining twice is idempotent; rejoining after a leave restores the original membership.
// @Tags        Circles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Circle ID (UUID)"       format(uuid)
//
// @Success     201  {object}  handlers.JoinCircleResponse
// @Failure     404  {object}  handlers.ErrorResponse "Circle not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /circles/{id}/members [post]
func (h *Handlers) JoinCircle(c *gin.Context) {
	circle, m, err := h.circleSvc.Join(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.failCircle(c, err)
		return
	}
	ok(c, http.StatusCreated, JoinCircleResponse{Circle: circle, Membership: m})
}

// LeaveCircle godoc
// @ID          leaveCircle
// @Summary     Leave a circle
// @Description Deactivates the current user's membership. Their claims stay as they are.
// @Tags        Circles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Circle ID (UUID)"       format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Circle not found or not a member"
// @Router      /circles/{id}/members [delete]
func (h *Handlers) LeaveCircle(c *gin.Context) {
	if err := h.circleSvc.Leave(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrNotMember) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "not a member of this circle")
			return
		}
		h.failCircle(c, err)
		return
	}
	noContent(c)
}

// ListMembers godoc
// @ID          listMembers
// @Summary     List circle members
// @Description Returns the active memberships of a circle, oldest first. Members only.
// @Tags        Circles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Circle ID (UUID)"       format(uuid)
//
// @Success     200  {object} handlers.ListMembersResponse
// @Failure     403  {object} handlers.ErrorResponse "Not a member"
// @Failure     404  {object} handlers.ErrorResponse "Circle not found"
// @Router      /circles/{id}/members [get]
func (h *Handlers) ListMembers(c *gin.Context) {
	members, err := h.circleSvc.Members(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotMember) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this circle")
			return
		}
		h.failCircle(c, err)
		return
	}
	ok(c, http.StatusOK, ListMembersResponse{Members: members})
}

// failCircle maps circle service errors to HTTP responses.
func (h *Handlers) failCircle(c *gin.Context, err error) {
	if errors.Is(err, services.ErrCircleNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "circle not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
