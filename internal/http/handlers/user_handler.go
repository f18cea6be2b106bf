// User HTTP handlers.
//
// This file exposes REST endpoints for the caller's own profile:
//   - PUT /users/me  (upsert display name, refresh last_seen)
//   - GET /users/me  (get)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpsertMeRequest is the JSON payload for updating the caller's profile.
type UpsertMeRequest struct {
	// DisplayName is shown to other circle members. Blank keeps the stored one.
	DisplayName string `json:"display_name" example:"Alex P"`
}

// UpsertMe godoc
// @ID          upsertMe
// @Summary     Update the current user's profile
// @Description Creates the profile on first sight and refreshes display name and last-seen otherwise.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.UpsertMeRequest  true  "Profile payload"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /users/me [put]
func (h *Handlers) UpsertMe(c *gin.Context) {
	var req UpsertMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	u, err := h.userSvc.Ensure(c.Request.Context(), userID(c), req.DisplayName)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, u)
}

// GetMe godoc
// @ID          getMe
// @Summary     Get the current user's profile
// @Description Returns the caller's profile, creating it on first sight.
// @Tags        Users
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  domain.User
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /users/me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	u, err := h.userSvc.Ensure(c.Request.Context(), userID(c), "")
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, u)
}
