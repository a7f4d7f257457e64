package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/statuscast/pkg/broadcast"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/status"
)

// SnapshotSource returns the current persisted state of a topic.
type SnapshotSource interface {
	FindByID(ctx context.Context, id string) (status.Record, error)
}

// Hub keeps live connections and the topic registry and pushes status
// updates to subscribers. Every registry change and every fan-out happens
// under one mutex, so broadcasts to a topic never interleave.
type Hub struct {
	cfg    Config
	logger *slog.Logger
	source SnapshotSource
	now    func() time.Time
	events *broadcast.MemoryBroadcaster[Event]

	mu      sync.Mutex
	clients map[*Client]struct{}
	topics  map[string][]*Client
	closed  bool

	pumps sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

func WithConfig(cfg Config) Option {
	return func(h *Hub) { h.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSnapshotSource sets where subscribe snapshots are read from.
// Without one, subscribing only acknowledges.
func WithSnapshotSource(s SnapshotSource) Option {
	return func(h *Hub) { h.source = s }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// New creates a Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		now:     time.Now,
		events:  broadcast.NewMemoryBroadcaster[Event](64),
		clients: make(map[*Client]struct{}),
		topics:  make(map[string][]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("hub"))
	return h
}

// Register adds a connection and queues the connected acknowledgment.
func (h *Hub) Register() (*Client, error) {
	return h.register(false)
}

// register counts a writer for Shutdown to wait on when withPump is set.
// The count is taken under the lock so Shutdown never misses it.
func (h *Hub) register(withPump bool) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if withPump {
		h.pumps.Add(1)
	}

	c := newClient(uuid.NewString(), h.cfg.SendBuffer)
	h.clients[c] = struct{}{}
	c.enqueue(OutboundMessage{
		Type:      TypeConnected,
		Message:   "WebSocket connected successfully",
		Timestamp: stamp(h.now()),
	})

	h.logger.Debug("client connected", logger.ConnID(c.id))
	h.emit(Event{Type: EventConnected, ClientID: c.id})
	return c, nil
}

// HandleMessage dispatches one raw client message.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, raw []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Debug("invalid client message", logger.ConnID(c.id), logger.Error(err))
		c.enqueue(errorMessage("Invalid JSON message", h.now()))
		return
	}

	switch msg.Type {
	case TypeSubscribe, TypeStartAnalysis:
		_ = h.Subscribe(ctx, c, msg.topic())
	case TypeUnsubscribe, TypeStopAnalysis:
		_ = h.Unsubscribe(c, msg.topic())
	case TypePing:
		c.enqueue(OutboundMessage{Type: TypePong, Timestamp: stamp(h.now())})
	default:
		c.enqueue(errorMessage(fmt.Sprintf("Unknown message type: %s", msg.Type), h.now()))
	}
}

// Subscribe registers c under topic, then pushes the persisted state of the
// topic followed by a subscribed acknowledgment. Broadcasts that arrive
// while the snapshot is being read are held and delivered after it, unless
// the snapshot is already as recent. Subscribing again forces a fresh
// snapshot.
func (h *Hub) Subscribe(ctx context.Context, c *Client, topic string) error {
	if topic == "" {
		c.enqueue(errorMessage(ErrTopicRequired.Error(), h.now()))
		return ErrTopicRequired
	}

	h.mu.Lock()
	if err := h.checkClientLocked(c); err != nil {
		h.mu.Unlock()
		return err
	}
	sub, ok := c.subs[topic]
	if !ok {
		sub = &subscription{}
		c.subs[topic] = sub
		h.topics[topic] = append(h.topics[topic], c)
	}
	sub.pending = true
	sub.gen++
	gen := sub.gen
	h.mu.Unlock()

	rec, found := h.snapshot(ctx, topic)

	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok = c.subs[topic]
	if !ok || sub.gen != gen {
		// unsubscribed, disconnected or re-subscribed meanwhile
		return nil
	}

	now := h.now()
	if found {
		at := rec.UpdatedAt
		if at.IsZero() {
			at = now
		}
		if !c.enqueue(statusMessage(topic, rec.Snapshot(), at)) {
			h.dropLocked(c, topic)
			return nil
		}
	}
	if held := sub.held; held != nil && (!found || held.updatedAt.IsZero() || held.updatedAt.After(rec.UpdatedAt)) {
		if !c.enqueue(*held) {
			h.dropLocked(c, topic)
			return nil
		}
	}
	sub.pending = false
	sub.held = nil

	c.enqueue(topicMessage(TypeSubscribed, topic, now))
	h.logger.Debug("client subscribed", logger.ConnID(c.id), logger.Topic(topic), slog.Bool("snapshot", found))
	h.emit(Event{Type: EventSubscribed, ClientID: c.id, Topic: topic})
	return nil
}

// Unsubscribe removes c from topic and acknowledges.
func (h *Hub) Unsubscribe(c *Client, topic string) error {
	if topic == "" {
		c.enqueue(errorMessage(ErrTopicRequired.Error(), h.now()))
		return ErrTopicRequired
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkClientLocked(c); err != nil {
		return err
	}
	if _, ok := c.subs[topic]; ok {
		delete(c.subs, topic)
		h.removeFromTopicLocked(c, topic)
	}

	c.enqueue(topicMessage(TypeUnsubscribed, topic, h.now()))
	h.logger.Debug("client unsubscribed", logger.ConnID(c.id), logger.Topic(topic))
	h.emit(Event{Type: EventUnsubscribed, ClientID: c.id, Topic: topic})
	return nil
}

// Disconnect scrubs c from every topic and closes it. Safe to call more than once.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for topic := range c.subs {
		h.removeFromTopicLocked(c, topic)
	}
	clear(c.subs)
	c.closeNormal()

	h.logger.Debug("client disconnected", logger.ConnID(c.id))
	h.emit(Event{Type: EventDisconnected, ClientID: c.id})
}

// Broadcast pushes a status_update to every connection subscribed to topic
// and returns how many accepted it. A connection that cannot accept the
// message is removed from the topic.
func (h *Hub) Broadcast(topic string, s status.Snapshot) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.fanOutLocked(topic, statusMessage(topic, s, h.now()), true)
	h.emit(Event{Type: EventBroadcast, Topic: topic, Recipients: n})
	return n
}

// Notify pushes an in-app notification to subscribers of topic.
func (h *Hub) Notify(topic string, n Notice) int {
	if n.Created == "" {
		n.Created = stamp(h.now())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	msg := topicMessage(TypeNotification, topic, h.now())
	msg.Notification = &n
	return h.fanOutLocked(topic, msg, false)
}

// fanOutLocked must be called with h.mu held. Pending subscriptions hold
// status messages until their snapshot is delivered.
func (h *Hub) fanOutLocked(topic string, msg OutboundMessage, holdPending bool) int {
	subs := h.topics[topic]
	if len(subs) == 0 {
		h.logger.Debug("no subscribers", logger.Topic(topic))
		return 0
	}

	delivered := 0
	kept := subs[:0]
	for _, c := range subs {
		if sub := c.subs[topic]; holdPending && sub != nil && sub.pending {
			m := msg
			sub.held = &m
			delivered++
			kept = append(kept, c)
			continue
		}
		if c.enqueue(msg) {
			delivered++
			kept = append(kept, c)
			continue
		}
		delete(c.subs, topic)
		h.logger.Debug("dropped unreachable subscriber", logger.ConnID(c.id), logger.Topic(topic))
		h.emit(Event{Type: EventDropped, ClientID: c.id, Topic: topic})
	}
	clear(subs[len(kept):])

	if len(kept) == 0 {
		delete(h.topics, topic)
	} else {
		h.topics[topic] = kept
	}
	return delivered
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Connections      int `json:"totalConnections"`
	ActiveTopics     int `json:"activeSubscriptions"`
	TotalSubscribers int `json:"totalSubscribers"`
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{Connections: len(h.clients), ActiveTopics: len(h.topics)}
	for _, subs := range h.topics {
		st.TotalSubscribers += len(subs)
	}
	return st
}

// Subscribers returns the number of connections registered under topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Closed reports whether Shutdown has been called.
func (h *Hub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Shutdown closes every connection with 1001 "Server shutting down", stops
// accepting new ones and waits for connection writers to finish.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for c := range h.clients {
		c.close(websocket.CloseGoingAway, "Server shutting down")
		clear(c.subs)
	}
	clear(h.clients)
	clear(h.topics)
	h.mu.Unlock()

	_ = h.events.Close()
	h.logger.Info("hub shut down")

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) snapshot(ctx context.Context, topic string) (status.Record, bool) {
	if h.source == nil {
		return status.Record{}, false
	}

	if h.cfg.SnapshotTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.SnapshotTimeout)
		defer cancel()
	}

	rec, err := h.source.FindByID(ctx, topic)
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, status.ErrNotFound):
		return status.Record{}, false
	default:
		h.logger.Warn("snapshot fetch failed", logger.Topic(topic), logger.Error(err))
		return status.Record{}, false
	}
}

func (h *Hub) checkClientLocked(c *Client) error {
	if h.closed {
		return ErrClosed
	}
	if _, ok := h.clients[c]; !ok {
		return ErrUnknownClient
	}
	return nil
}

// dropLocked removes c from topic after a failed push.
func (h *Hub) dropLocked(c *Client, topic string) {
	delete(c.subs, topic)
	h.removeFromTopicLocked(c, topic)
	h.emit(Event{Type: EventDropped, ClientID: c.id, Topic: topic})
}

func (h *Hub) removeFromTopicLocked(c *Client, topic string) {
	subs := h.topics[topic]
	if i := slices.Index(subs, c); i >= 0 {
		subs = slices.Delete(subs, i, i+1)
	}
	if len(subs) == 0 {
		delete(h.topics, topic)
		return
	}
	h.topics[topic] = subs
}
