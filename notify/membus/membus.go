// Package membus provides an in-process Broadcaster. A single Bus stands
// in for the browser's broadcast channel when simulating multiple
// instances in one process: each simulated instance gets its own Client,
// and a Client never hears its own publishes.
package membus

import (
	"sync"

	"github.com/sessionkit/sessionkit/notify"
)

type subscription struct {
	client *Client
	ch     chan notify.Message
}

// Bus fans messages out across its clients.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
}

func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// NewClient returns a connection to the bus for one instance.
func (b *Bus) NewClient() *Client {
	return &Client{bus: b}
}

func (b *Bus) publish(from *Client, msg notify.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.client == from {
			continue
		}
		// Best effort: a subscriber with a full buffer is skipped.
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

func (b *Bus) subscribe(client *Client) (<-chan notify.Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscription{client: client, ch: make(chan notify.Message, 16)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

var _ notify.Broadcaster = (*Client)(nil)

// Client is one instance's handle on the bus.
type Client struct {
	bus *Bus
}

func (c *Client) Publish(msg notify.Message) error {
	c.bus.publish(c, msg)
	return nil
}

func (c *Client) Subscribe() (<-chan notify.Message, func()) {
	return c.bus.subscribe(c)
}
