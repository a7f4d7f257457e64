package hub

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one live connection. Outbound messages are queued on a bounded
// buffer drained by the connection's writer.
type Client struct {
	id   string
	send chan OutboundMessage
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string

	// guarded by Hub.mu
	subs map[string]*subscription
}

// subscription tracks one topic of a client. While pending, the snapshot is
// being fetched and broadcasts for the topic are held back.
type subscription struct {
	pending bool
	held    *OutboundMessage
	gen     uint64
}

func newClient(id string, buffer int) *Client {
	return &Client{
		id:   id,
		send: make(chan OutboundMessage, max(buffer, 1)),
		done: make(chan struct{}),
		subs: make(map[string]*subscription),
	}
}

func (c *Client) ID() string { return c.id }

// Messages is the outbound queue.
func (c *Client) Messages() <-chan OutboundMessage { return c.send }

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

// CloseStatus is the websocket close code and reason to send once Done is closed.
func (c *Client) CloseStatus() (int, string) {
	<-c.done
	return c.closeCode, c.closeReason
}

// enqueue never blocks. Reports false when the client is gone or its queue is full.
func (c *Client) enqueue(msg OutboundMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.done)
	})
}

func (c *Client) closeNormal() {
	c.close(websocket.CloseNormalClosure, "")
}
