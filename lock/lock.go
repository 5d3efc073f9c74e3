// Package lock implements the TTL-bounded mutual exclusion that keeps
// refresh attempts single-flight across instances sharing a store.
//
// This is a best-effort protocol, not a linearizable lock: TryAcquire is
// a read-check-write with no compare-and-swap at the storage layer, so
// two instances whose ticks align exactly at TTL expiry can both acquire
// within the race window. The accepted worst case is a duplicate refresh
// call, which the backend tolerates.
package lock

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	kiterrors "github.com/sessionkit/sessionkit/internal/errors"
	"github.com/sessionkit/sessionkit/storage"
)

// Key is the storage key holding the lock record.
const Key = "auth_refresh_lock"

// DefaultTTL is the age past which a lock record is considered abandoned
// and may be overwritten by any instance.
const DefaultTTL = 15 * time.Second

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Record is the persisted lock state.
type Record struct {
	Owner string `json:"owner"`
	TS    int64  `json:"ts"` // acquisition instant, milliseconds since epoch
}

// AcquiredAt returns the instant the record was written.
func (r Record) AcquiredAt() time.Time {
	return time.UnixMilli(r.TS)
}

// Lock coordinates refresh exclusivity over a shared key-value store.
type Lock struct {
	kv  storage.KeyValueStore
	key string
	ttl time.Duration
}

// Option modifies a Lock.
type Option func(*Lock)

// WithTTL overrides the abandonment TTL.
func WithTTL(ttl time.Duration) Option {
	return func(l *Lock) {
		l.ttl = ttl
	}
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(l *Lock) {
		l.key = key
	}
}

func New(kv storage.KeyValueStore, options ...Option) *Lock {
	l := &Lock{
		kv:  kv,
		key: Key,
		ttl: DefaultTTL,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// TryAcquire attempts to take the lock for owner. It succeeds when no
// record exists, when the existing record is older than the TTL (the
// crash/stuck-instance recovery path), or when owner already holds it.
// A fresh record held by another owner is left untouched.
func (l *Lock) TryAcquire(owner string) (bool, error) {
	record, err := l.Holder()
	if err != nil {
		return false, err
	}

	if record != nil && record.Owner != owner && !l.expired(*record) {
		return false, nil
	}

	newRecord := Record{Owner: owner, TS: NowTimeFunc().UnixMilli()}
	data, err := json.Marshal(newRecord)
	if err != nil {
		return false, errors.Wrap(err, "[Lock.TryAcquire] marshal record")
	}
	if err := l.kv.Set(l.key, string(data)); err != nil {
		return false, errors.Wrap(err, "[Lock.TryAcquire] write record")
	}
	return true, nil
}

// Release deletes the lock record only when owner still holds it. The
// ownership check is load-bearing: without it a slow instance could
// delete a lock that a newer instance acquired after TTL takeover.
func (l *Lock) Release(owner string) error {
	record, err := l.Holder()
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	if record.Owner != owner {
		return kiterrors.ErrNotOwner
	}
	return errors.Wrap(l.kv.Remove(l.key), "[Lock.Release] remove record")
}

// Holder returns the current lock record, or nil when none exists. An
// unparseable record is treated as absent so a corrupt write cannot wedge
// every instance forever.
func (l *Lock) Holder() (*Record, error) {
	value, ok, err := l.kv.Get(l.key)
	if err != nil {
		return nil, errors.Wrap(err, "[Lock.Holder] read record")
	}
	if !ok {
		return nil, nil
	}

	var record Record
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, nil
	}
	return &record, nil
}

func (l *Lock) expired(record Record) bool {
	return NowTimeFunc().Sub(record.AcquiredAt()) > l.ttl
}
