// Resource HTTP handlers.
//
// This file exposes REST endpoints for a circle's shared resources:
//   - POST   /circles/{id}/resources  (register)
//   - GET    /circles/{id}/resources  (list, paginated, ETag support)
//   - GET    /resources/{id}          (get)
//   - PUT    /resources/{id}          (update, creator only)
//   - DELETE /resources/{id}          (deactivate, creator only)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/repo"
	"github.com/circleshare/go-share-backend/internal/services"
)

//
// DTOs
//

// CreateResourceRequest is the JSON payload for registering a resource.
type CreateResourceRequest struct {
	// Name labels the resource (1–120 chars).
	Name string `json:"name" binding:"required,min=1,max=120" example:"Pressure washer"`
	// Description optionally adds detail for other members.
	Description string `json:"description" example:"2000 PSI, in the garage"`
	// Category optionally buckets the resource (e.g., tools, vehicles).
	Category string `json:"category" example:"tools"`
}

// UpdateResourceRequest is the JSON payload for editing a resource. Blank
// name keeps the current one.
type UpdateResourceRequest struct {
	Name        string `json:"name" example:"Pressure washer (gas)"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ListResourcesResponse wraps a page of resources and pagination information.
type ListResourcesResponse struct {
	Resources  []domain.Resource `json:"resources"`
	Pagination Pagination        `json:"pagination"`
}

//
// Handlers
//

// CreateResource godoc
// @ID          createResource
// @Summary     Register a shared resource
// @Description Registers a resource in the circle on behalf of the current user, who must be a member.
// @Tags        Resources
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Circle ID (UUID)"       format(uuid)
// @Param       body       body    handlers.CreateResourceRequest  true  "Resource payload"
//
// @Success     201  {object}  domain.Resource
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse "Circle not found"
// @Router      /circles/{id}/resources [post]
func (h *Handlers) CreateResource(c *gin.Context) {
	var req CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-120 chars)")
		return
	}

	res, err := h.resourceSvc.Create(c.Request.Context(), userID(c), c.Param("id"), req.Name, req.Description, req.Category)
	if err != nil {
		h.failResource(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// ListResources godoc
// @ID          listResources
// @Summary     List a circle's resources (paginated)
// @Description Returns a page of the circle's active resources, newest first. Members only. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Resources
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       id             path    string  true  "Circle ID (UUID)"            format(uuid)
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListResourcesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     403  {object} handlers.ErrorResponse "Not a member"
// @Failure     404  {object} handlers.ErrorResponse "Circle not found"
// @Router      /circles/{id}/resources [get]
func (h *Handlers) ListResources(c *gin.Context) {
	ctx := c.Request.Context()
	circleID := c.Param("id")
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.ResourcesStats(ctx, h.db, circleID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"resources:%s:%d:%d"`, circleID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.resourceSvc.ListPage(ctx, userID(c), circleID, page, pageSize)
	if err != nil {
		h.failResource(c, err)
		return
	}
	ok(c, http.StatusOK, ListResourcesResponse{
		Resources:  items,
		Pagination: paginate(page, pageSize, total),
	})
}

// GetResource godoc
// @ID          getResource
// @Summary     Get a resource
// @Description Returns a resource, including deactivated ones for historical context. Members of its circle only.
// @Tags        Resources
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Resource ID (UUID)"     format(uuid)
//
// @Success     200  {object} domain.Resource
// @Failure     403  {object} handlers.ErrorResponse "Not a member"
// @Failure     404  {object} handlers.ErrorResponse "Resource not found"
// @Router      /resources/{id} [get]
func (h *Handlers) GetResource(c *gin.Context) {
	res, err := h.resourceSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.failResource(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// UpdateResource godoc
// @ID          updateResource
// @Summary     Update a resource
// @Description Edits a resource's descriptive fields. Creator only; the owning circle never changes.
// @Tags        Resources
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Resource ID (UUID)"     format(uuid)
// @Param       body       body    handlers.UpdateResourceRequest  true  "Updated fields"
//
// @Success     200  {object} domain.Resource
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the creator"
// @Failure     404  {object} handlers.ErrorResponse "Resource not found"
// @Router      /resources/{id} [put]
func (h *Handlers) UpdateResource(c *gin.Context) {
	var req UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.resourceSvc.Update(c.Request.Context(), userID(c), c.Param("id"), req.Name, req.Description, req.Category)
	if err != nil {
		h.failResource(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// DeactivateResource godoc
// @ID          deactivateResource
// @Summary     Deactivate a resource
// @Description Retires a resource from its circle. Creator only; refused while claims are still active.
// @Tags        Resources
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Resource ID (UUID)"     format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Not the creator"
// @Failure     404  {object} handlers.ErrorResponse "Resource not found"
// @Failure     409  {object} handlers.ErrorResponse "Active claims exist"
// @Router      /resources/{id} [delete]
func (h *Handlers) DeactivateResource(c *gin.Context) {
	if err := h.resourceSvc.Deactivate(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.failResource(c, err)
		return
	}
	noContent(c)
}

// failResource maps resource service errors to HTTP responses.
func (h *Handlers) failResource(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrResourceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case errors.Is(err, services.ErrCircleNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "circle not found")
	case errors.Is(err, services.ErrNotMember):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this circle")
	case errors.Is(err, services.ErrNotResourceCreator):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "only the resource creator may do this")
	case errors.Is(err, services.ErrResourceInUse):
		fail(c, http.StatusConflict, ErrCodeResourceInUse, "resource has active claims")
	case errors.Is(err, services.ErrInvalidResourceName):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-120 chars)")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
