package lock_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kiterrors "github.com/sessionkit/sessionkit/internal/errors"
	"github.com/sessionkit/sessionkit/lock"
	"github.com/sessionkit/sessionkit/storage/memstore"
)

const (
	tabX = "tab-x"
	tabY = "tab-y"
)

func fixedNow(t *testing.T, now time.Time) {
	t.Helper()
	lock.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { lock.NowTimeFunc = time.Now })
}

func TestTryAcquireEmptyStore(t *testing.T) {
	kv := memstore.New()
	l := lock.New(kv)

	acquired, err := l.TryAcquire(tabX)
	require.NoError(t, err)
	require.True(t, acquired)

	holder, err := l.Holder()
	require.NoError(t, err)
	require.NotNil(t, holder)
	require.Equal(t, tabX, holder.Owner)
}

func TestTryAcquireFreshForeignLockFails(t *testing.T) {
	kv := memstore.New()
	l := lock.New(kv)

	acquired, err := l.TryAcquire(tabX)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = l.TryAcquire(tabY)
	require.NoError(t, err)
	require.False(t, acquired)

	// The record must be untouched.
	holder, err := l.Holder()
	require.NoError(t, err)
	require.Equal(t, tabX, holder.Owner)
}

func TestTryAcquireStaleLockSelfHeals(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixedNow(t, now)

	kv := memstore.New()
	l := lock.New(kv, lock.WithTTL(15*time.Second))

	// A record 20s old with a 15s TTL is abandoned.
	stale, err := json.Marshal(lock.Record{Owner: tabX, TS: now.Add(-20 * time.Second).UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, kv.Set(lock.Key, string(stale)))

	acquired, err := l.TryAcquire(tabY)
	require.NoError(t, err)
	require.True(t, acquired)

	holder, err := l.Holder()
	require.NoError(t, err)
	require.Equal(t, tabY, holder.Owner)
	require.Equal(t, now.UnixMilli(), holder.TS)
}

func TestTryAcquireFreshLockAtBoundaryFails(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixedNow(t, now)

	kv := memstore.New()
	l := lock.New(kv, lock.WithTTL(15*time.Second))

	fresh, err := json.Marshal(lock.Record{Owner: tabX, TS: now.Add(-15 * time.Second).UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, kv.Set(lock.Key, string(fresh)))

	// Exactly TTL old is not yet abandoned.
	acquired, err := l.TryAcquire(tabY)
	require.NoError(t, err)
	require.False(t, acquired)
}

func TestTryAcquireReentrant(t *testing.T) {
	kv := memstore.New()
	l := lock.New(kv)

	acquired, err := l.TryAcquire(tabX)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = l.TryAcquire(tabX)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestReleaseByOwner(t *testing.T) {
	kv := memstore.New()
	l := lock.New(kv)

	_, err := l.TryAcquire(tabX)
	require.NoError(t, err)
	require.NoError(t, l.Release(tabX))

	holder, err := l.Holder()
	require.NoError(t, err)
	require.Nil(t, holder)
}

func TestReleaseByNonOwnerKeepsRecord(t *testing.T) {
	kv := memstore.New()
	l := lock.New(kv)

	_, err := l.TryAcquire(tabX)
	require.NoError(t, err)

	err = l.Release(tabY)
	require.ErrorIs(t, err, kiterrors.ErrNotOwner)

	holder, err := l.Holder()
	require.NoError(t, err)
	require.NotNil(t, holder)
	require.Equal(t, tabX, holder.Owner)
}

func TestReleaseWithoutRecordIsNoop(t *testing.T) {
	kv := memstore.New()
	l := lock.New(kv)

	require.NoError(t, l.Release(tabX))
}

func TestHolderIgnoresCorruptRecord(t *testing.T) {
	kv := memstore.New()
	l := lock.New(kv)

	require.NoError(t, kv.Set(lock.Key, "not json"))

	holder, err := l.Holder()
	require.NoError(t, err)
	require.Nil(t, holder)

	// A corrupt record must not wedge acquisition.
	acquired, err := l.TryAcquire(tabY)
	require.NoError(t, err)
	require.True(t, acquired)
}
