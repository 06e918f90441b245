package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/waverelay/waverelay/internal/logger"
)

const subscriberBuffer = 32

// Hub is the in-process publisher backing websocket streams. Subscribers are
// either global or scoped to one room.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	log    *slog.Logger
}

type subscription struct {
	roomID string
	ch     chan Event
}

func NewHub() *Hub {
	return &Hub{
		subs: map[int]*subscription{},
		log:  logger.L.With(slog.String("service", "event-hub")),
	}
}

// Subscribe registers a consumer. An empty roomID receives every event,
// otherwise only events for that room. The returned cancel func must be
// called when the consumer goes away.
func (h *Hub) Subscribe(roomID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	sub := &subscription{
		roomID: roomID,
		ch:     make(chan Event, subscriberBuffer),
	}
	h.subs[id] = sub

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers the event to all matching subscribers. Slow consumers are
// skipped rather than blocking the caller.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.roomID != "" && sub.roomID != ev.RoomID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn("dropping event for slow subscriber",
				slog.String("type", string(ev.Type)),
				slog.String("room_id", ev.RoomID))
		}
	}
	return nil
}
