package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"dispatch/internal/redis"
)

// EventsHandler bridges room broadcasts to HTTP clients over
// server-sent events. One subscription per connected client; nothing
// is replayed for late joiners.
type EventsHandler struct {
	pubsub *redis.PubSubStore
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(pubsub *redis.PubSubStore) *EventsHandler {
	return &EventsHandler{pubsub: pubsub}
}

// BranchEvents handles GET /v1/branches/:id/events
func (h *EventsHandler) BranchEvents(c *gin.Context) {
	h.stream(c, redis.BranchRoom(c.Param("id")))
}

// OrderEvents handles GET /v1/orders/:id/events
func (h *EventsHandler) OrderEvents(c *gin.Context) {
	h.stream(c, redis.OrderRoom(c.Param("id")))
}

// CourierEvents handles GET /v1/couriers/:id/events
func (h *EventsHandler) CourierEvents(c *gin.Context) {
	h.stream(c, redis.CourierRoom(c.Param("id")))
}

func (h *EventsHandler) stream(c *gin.Context, room string) {
	sub := h.pubsub.Subscribe(c.Request.Context(), room)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := sub.Channel()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", msg.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
