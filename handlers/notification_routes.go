// handlers/notification_routes.go
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"survivor-pool/middleware"
	"survivor-pool/models"
	"survivor-pool/services"
	"survivor-pool/store"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultStreamPoll = 2 * time.Second
	// Rows committed late can carry a timestamp just behind the newest one
	// already sent.
	streamOverlap = time.Second
)

type NotificationHandler struct {
	notifications *services.NotificationService
	streamPoll    time.Duration
}

func NewNotificationHandler(notifications *services.NotificationService, streamPoll time.Duration) *NotificationHandler {
	if streamPoll <= 0 {
		streamPoll = defaultStreamPoll
	}
	return &NotificationHandler{notifications: notifications, streamPoll: streamPoll}
}

// SetupNotificationRoutes registers the inbox routes. The stream route uses
// query-string auth because EventSource cannot send headers.
func SetupNotificationRoutes(app fiber.Router, h *NotificationHandler, validator middleware.TokenValidator) {
	if validator != nil {
		app.Get("/notifications/stream", middleware.SSEAuthMiddleware(validator), h.Stream)
	}

	secured := app.Group("/notifications", middleware.UserContextMiddleware())
	secured.Get("/", h.List)
	secured.Get("/unread-count", h.UnreadCount)
	secured.Patch("/read-all", h.MarkAllRead)
	secured.Patch("/:id/read", h.MarkRead)
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	page, err := h.notifications.List(c.UserContext(), middleware.UserID(c), store.NotificationQuery{
		Limit:      c.QueryInt("limit", services.DefaultNotificationLimit),
		Offset:     c.QueryInt("offset", 0),
		UnreadOnly: c.QueryBool("unread", false),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newNotificationPageView(page))
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	n, err := h.notifications.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.notifications.MarkRead(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	n, err := h.notifications.MarkAllRead(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// Stream pushes new notifications as server-sent events. It polls the inbox
// and ends when a write to the client fails.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The fiber ctx is recycled once the handler returns; the writer only
	// keeps what it copied out.
	cursor := newStreamCursor(time.Now(), streamOverlap)
	poll := h.streamPoll
	notifications := h.notifications

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()

		// Initial keepalive (comment event)
		fmt.Fprint(w, ":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			rows, err := notifications.Since(ctx, userID, cursor.since())
			cancel()
			if err != nil {
				log.Printf("SSE query error for user %s: %v", userID, err)
				continue
			}

			fresh := cursor.advance(rows)
			if len(fresh) == 0 {
				fmt.Fprint(w, ": ping\n\n")
			}
			for _, n := range fresh {
				payload, err := json.Marshal(n)
				if err != nil {
					log.Printf("SSE encode error for notification %s: %v", n.ID, err)
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", n.ID, n.Type, payload)
			}

			if err := w.Flush(); err != nil {
				// Client disconnected
				return
			}
		}
	})
	return nil
}

// streamCursor tracks what a stream has already sent. It re-reads a window
// behind the newest timestamp and drops ids it has seen, so rows sharing a
// timestamp are delivered exactly once.
type streamCursor struct {
	at      time.Time
	overlap time.Duration
	seen    map[string]time.Time
}

func newStreamCursor(start time.Time, overlap time.Duration) *streamCursor {
	return &streamCursor{at: start, overlap: overlap, seen: make(map[string]time.Time)}
}

func (c *streamCursor) since() time.Time {
	return c.at.Add(-c.overlap)
}

// advance returns the rows not sent yet, in input order.
func (c *streamCursor) advance(rows []models.Notification) []models.Notification {
	var out []models.Notification
	for _, n := range rows {
		if _, ok := c.seen[n.ID]; ok {
			continue
		}
		c.seen[n.ID] = n.CreatedAt
		if n.CreatedAt.After(c.at) {
			c.at = n.CreatedAt
		}
		out = append(out, n)
	}
	floor := c.since()
	for id, at := range c.seen {
		if at.Before(floor) {
			delete(c.seen, id)
		}
	}
	return out
}
