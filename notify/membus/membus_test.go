package membus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sessionkit/sessionkit/notify"
	"github.com/sessionkit/sessionkit/notify/membus"
)

func receive(t *testing.T, ch <-chan notify.Message) notify.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return notify.Message{}
	}
}

func TestPublishReachesSiblings(t *testing.T) {
	bus := membus.New()
	a := bus.NewClient()
	b := bus.NewClient()
	c := bus.NewClient()

	bCh, bCancel := b.Subscribe()
	defer bCancel()
	cCh, cCancel := c.Subscribe()
	defer cCancel()

	sent := notify.Message{Kind: notify.KindRefreshStart, By: "tab-a"}
	require.NoError(t, a.Publish(sent))

	require.Equal(t, sent, receive(t, bCh))
	require.Equal(t, sent, receive(t, cCh))
}

func TestPublisherDoesNotHearItself(t *testing.T) {
	bus := membus.New()
	a := bus.NewClient()
	b := bus.NewClient()

	aCh, aCancel := a.Subscribe()
	defer aCancel()
	bCh, bCancel := b.Subscribe()
	defer bCancel()

	require.NoError(t, a.Publish(notify.Message{Kind: notify.KindRefreshDone, OK: true}))

	// b hears it, a does not.
	receive(t, bCh)
	select {
	case msg := <-aCh:
		t.Fatalf("publisher received its own message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := membus.New()
	a := bus.NewClient()
	b := bus.NewClient()

	bCh, bCancel := b.Subscribe()
	bCancel()

	_, open := <-bCh
	require.False(t, open)

	// Publishing after cancel must not panic.
	require.NoError(t, a.Publish(notify.Message{Kind: notify.KindRefreshStart}))
}
