package memstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sessionkit/sessionkit/storage"
	"github.com/sessionkit/sessionkit/storage/memstore"
)

func TestGetSetRemove(t *testing.T) {
	s := memstore.New()

	_, ok, err := s.Get("key")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("key", "value"))

	value, ok, err := s.Get("key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value", value)

	require.NoError(t, s.Remove("key"))
	_, ok, err = s.Get("key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWatchDeliversChanges(t *testing.T) {
	s := memstore.New()

	changes, cancel := s.Watch()
	defer cancel()

	require.NoError(t, s.Set("key", "value"))
	require.NoError(t, s.Remove("key"))

	expect := func(want storage.Change) {
		t.Helper()
		select {
		case change := <-changes:
			require.Equal(t, want, change)
		case <-time.After(time.Second):
			t.Fatal("no change notification received")
		}
	}

	expect(storage.Change{Key: "key", Value: "value"})
	expect(storage.Change{Key: "key", Removed: true})
}

func TestRemoveAbsentKeyDoesNotNotify(t *testing.T) {
	s := memstore.New()

	changes, cancel := s.Watch()
	defer cancel()

	require.NoError(t, s.Remove("missing"))

	select {
	case change := <-changes:
		t.Fatalf("unexpected notification: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := memstore.New()

	changes, cancel := s.Watch()
	cancel()

	_, open := <-changes
	require.False(t, open)

	// Writes after cancel must not panic.
	require.NoError(t, s.Set("key", "value"))
}
