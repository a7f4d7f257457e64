package hub

import (
	"context"
	"time"

	"github.com/dmitrymomot/statuscast/pkg/broadcast"
)

// EventType names a hub lifecycle event.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
	EventBroadcast    EventType = "broadcast"
	EventDropped      EventType = "dropped"
)

// Event is published on the hub's internal bus.
type Event struct {
	Type     EventType
	ClientID string
	Topic    string
	// Recipients is the number of connections a broadcast reached.
	Recipients int
	At         time.Time
}

// Events subscribes to hub lifecycle events until ctx is done. Slow
// subscribers are dropped.
func (h *Hub) Events(ctx context.Context) broadcast.Subscriber[Event] {
	return h.events.Subscribe(ctx)
}

func (h *Hub) emit(e Event) {
	e.At = h.now()
	_ = h.events.Broadcast(context.Background(), broadcast.Message[Event]{Data: e})
}
