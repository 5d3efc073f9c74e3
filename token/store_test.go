package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sessionkit/sessionkit/storage/memstore"
	"github.com/sessionkit/sessionkit/token"
)

func TestStorePairLifecycle(t *testing.T) {
	kv := memstore.New()
	store := token.NewStore(kv)

	// Empty store reads as absent, not as an error.
	access, err := store.AccessToken()
	require.NoError(t, err)
	require.Empty(t, access)

	require.NoError(t, store.SetPair("ACCESS", "REFRESH"))

	access, err = store.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "ACCESS", access)

	refresh, err := store.RefreshToken()
	require.NoError(t, err)
	require.Equal(t, "REFRESH", refresh)

	// Refresh overwrites the access token in place.
	require.NoError(t, store.SetAccessToken("ACCESS2"))
	access, err = store.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "ACCESS2", access)

	refresh, err = store.RefreshToken()
	require.NoError(t, err)
	require.Equal(t, "REFRESH", refresh)

	// Logout deletes both together.
	require.NoError(t, store.Clear())
	access, err = store.AccessToken()
	require.NoError(t, err)
	require.Empty(t, access)
	refresh, err = store.RefreshToken()
	require.NoError(t, err)
	require.Empty(t, refresh)
}

func TestStoreExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	kv := memstore.New()
	store := token.NewStore(kv)

	expiry, err := store.Expiry(now)
	require.NoError(t, err)
	require.False(t, expiry.Active)

	require.NoError(t, store.SetPair(accessToken(t, now.Add(45*time.Second)), "REFRESH"))

	expiry, err = store.Expiry(now)
	require.NoError(t, err)
	require.True(t, expiry.Active)
	require.Equal(t, 45*time.Second, expiry.TimeLeft)
}

func TestStoreWatchSeesSiblingWrites(t *testing.T) {
	kv := memstore.New()
	writer := token.NewStore(kv)
	reader := token.NewStore(kv)

	changes, cancel := reader.Watch()
	defer cancel()

	require.NoError(t, writer.SetAccessToken("ACCESS"))

	select {
	case change := <-changes:
		require.Equal(t, token.AccessTokenKey, change.Key)
		require.Equal(t, "ACCESS", change.Value)
	case <-time.After(time.Second):
		t.Fatal("no change notification received")
	}
}
