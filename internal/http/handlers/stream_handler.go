// Circle event stream handler (Server-Sent Events).
//
// GET /circles/{id}/events streams schedule changes for one circle to
// connected members: claim lifecycle transitions, resource edits, and joins.
// The stream is a notification channel, not a durable log; clients re-fetch
// through the regular API after a reconnect.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/circleshare/go-share-backend/internal/http/middleware"
)

// streamHeartbeat is the keep-alive interval for idle SSE connections.
const streamHeartbeat = 30 * time.Second

// StreamEvents godoc
// @ID          streamEvents
// @Summary     Stream circle events (SSE)
// @Description Opens a Server-Sent Events stream of the circle's schedule changes
// @Description (claim_created, claim_updated, claim_returned, claim_cancelled,
// @Description resource_updated, member_joined). Members only. Idle connections
// @Description receive a heartbeat comment every 30 seconds.
// @Tags        Events
// @Produce     text/event-stream
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Circle ID (UUID)"       format(uuid)
//
// @Success     200  {string} string "event stream"
// @Failure     403  {object} handlers.ErrorResponse "Not a member"
// @Failure     404  {object} handlers.ErrorResponse "Circle not found"
// @Router      /circles/{id}/events [get]
func (h *Handlers) StreamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	circleID := c.Param("id")

	if _, err := h.circleSvc.Get(ctx, circleID); err != nil {
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
	if h.bus == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "event stream unavailable")
		return
	}

	flusher, okFlush := c.Writer.(http.Flusher)
	if !okFlush {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "streaming not supported")
		return
	}

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Status(http.StatusOK)
	flusher.Flush()

	sub := h.bus.Subscribe(circleID)
	defer h.bus.Unsubscribe(sub)

	lg := middleware.LoggerFrom(c)

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case evt, open := <-sub.Events():
			if !open {
				// Bus shut down (server shutdown).
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				lg.Warn().Err(err).Msg("drop unencodable event")
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}
