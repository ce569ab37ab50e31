package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
)

// EventType represents the type of realtime event.
type EventType string

const (
	EventOrderCreated    EventType = "ORDER_CREATED"
	EventOrderAssigned   EventType = "ORDER_ASSIGNED"
	EventStatusChanged   EventType = "STATUS_CHANGED"
	EventCourierLocation EventType = "COURIER_LOCATION"
	EventCourierOnline   EventType = "COURIER_ONLINE"
)

// Event is the wire payload broadcast to room subscribers.
type Event struct {
	Type      EventType `json:"type"`
	OrderID   string    `json:"order_id,omitempty"`
	CourierID string    `json:"courier_id,omitempty"`
	BranchID  string    `json:"branch_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Lat       float64   `json:"lat,omitempty"`
	Lng       float64   `json:"lng,omitempty"`
	At        time.Time `json:"at"`
}

type queuedEvent struct {
	rooms []string
	event Event
}

// EventService fans out state changes to room subscribers. It is a
// convenience notification layer, not a durable queue: publishing is
// best-effort and never blocks or fails the originating operation.
// Disconnected observers reconcile by refetching over HTTP.
type EventService struct {
	publisher redis.PublisherInterface
	queue     chan queuedEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventService creates a new EventService. Run must be called for
// events to be delivered.
func NewEventService(publisher redis.PublisherInterface) *EventService {
	return &EventService{
		publisher: publisher,
		queue:     make(chan queuedEvent, 256),
		done:      make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled or Close is called.
func (s *EventService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case qe := <-s.queue:
			s.deliver(qe)
		}
	}
}

// Close stops the delivery loop. Queued events are dropped.
func (s *EventService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// publish enqueues an event for the given rooms. A full queue drops
// the event rather than stall the caller.
func (s *EventService) publish(rooms []string, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	select {
	case s.queue <- queuedEvent{rooms: rooms, event: event}:
	default:
		log.Printf("[EVENTS] queue full, dropped %s for rooms %v", event.Type, rooms)
	}
}

func (s *EventService) deliver(qe queuedEvent) {
	payload, err := json.Marshal(qe.event)
	if err != nil {
		log.Printf("[EVENTS] marshal %s: %v", qe.event.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, room := range qe.rooms {
		if err := s.publisher.Publish(ctx, room, payload); err != nil {
			log.Printf("[EVENTS] publish %s to %s: %v", qe.event.Type, room, err)
		}
	}
}

// NotifyOrderCreated broadcasts a new order to the branch operations room.
func (s *EventService) NotifyOrderCreated(order *domain.Order) {
	s.publish([]string{redis.BranchRoom(order.BranchID)}, Event{
		Type:     EventOrderCreated,
		OrderID:  order.ID,
		BranchID: order.BranchID,
		Status:   string(order.Status),
	})
}

// NotifyOrderAssigned tells the assigned courier and the customer
// tracking room about the binding.
func (s *EventService) NotifyOrderAssigned(order *domain.Order) {
	s.publish([]string{
		redis.CourierRoom(order.CourierID),
		redis.OrderRoom(order.ID),
	}, Event{
		Type:      EventOrderAssigned,
		OrderID:   order.ID,
		CourierID: order.CourierID,
		BranchID:  order.BranchID,
		Status:    string(order.Status),
	})
}

// NotifyStatusChanged broadcasts a status transition to the order
// tracking room and the branch operations room.
func (s *EventService) NotifyStatusChanged(order *domain.Order) {
	s.publish([]string{
		redis.OrderRoom(order.ID),
		redis.BranchRoom(order.BranchID),
	}, Event{
		Type:      EventStatusChanged,
		OrderID:   order.ID,
		CourierID: order.CourierID,
		BranchID:  order.BranchID,
		Status:    string(order.Status),
	})
}

// NotifyCourierLocation broadcasts a location report to the courier's
// branch room.
func (s *EventService) NotifyCourierLocation(courier *domain.Courier, point domain.GeoPoint) {
	s.publish([]string{redis.BranchRoom(courier.BranchID)}, Event{
		Type:      EventCourierLocation,
		CourierID: courier.ID,
		BranchID:  courier.BranchID,
		Lat:       point.Lat,
		Lng:       point.Lng,
		At:        point.RecordedAt,
	})
}

// NotifyCourierOnline broadcasts a shift start/stop to the branch room.
func (s *EventService) NotifyCourierOnline(courier *domain.Courier, online bool) {
	status := "OFFLINE"
	if online {
		status = "ONLINE"
	}
	s.publish([]string{redis.BranchRoom(courier.BranchID)}, Event{
		Type:      EventCourierOnline,
		CourierID: courier.ID,
		BranchID:  courier.BranchID,
		Status:    status,
	})
}
