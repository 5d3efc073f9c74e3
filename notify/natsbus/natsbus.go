// Package natsbus provides a NATS-backed Broadcaster for deployments
// where instances are separate processes or hosts. Messages are JSON on
// subject "sessionkit.<channel>". The connection is opened with NoEcho so
// an instance never hears its own publishes, matching the in-process bus.
package natsbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/sessionkit/sessionkit/notify"
)

const subjectPrefix = "sessionkit."

var _ notify.Broadcaster = (*Bus)(nil)

// Bus broadcasts refresh lifecycle messages over a NATS connection.
type Bus struct {
	nc      *nats.Conn
	subject string

	mu     sync.Mutex
	closed bool
}

// Connect dials the NATS server and returns a bus on the given channel
// name (DefaultChannel when empty).
func Connect(url, channel string, options ...nats.Option) (*Bus, error) {
	if channel == "" {
		channel = notify.DefaultChannel
	}

	opts := append([]nats.Option{
		nats.Name("sessionkit"),
		nats.NoEcho(),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}, options...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "[natsbus.Connect] connect")
	}

	return &Bus{nc: nc, subject: subjectPrefix + channel}, nil
}

func (b *Bus) Publish(msg notify.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "[Bus.Publish] marshal message")
	}
	return errors.Wrap(b.nc.Publish(b.subject, data), "[Bus.Publish] publish")
}

// Subscribe delivers messages until cancelled. Messages that fail to
// decode are dropped: a malformed broadcast must not wedge the receiver,
// which will converge via the storage change signal anyway.
func (b *Bus) Subscribe() (<-chan notify.Message, func()) {
	ch := make(chan notify.Message, 16)

	sub, err := b.nc.Subscribe(b.subject, func(m *nats.Msg) {
		var msg notify.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			return
		}
		select {
		case ch <- msg:
		default:
		}
	})
	if err != nil {
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.Unsubscribe()
			close(ch)
		})
	}
	return ch, cancel
}

// Close drains and closes the underlying connection.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.nc.Close()
}
