// Package storage defines the shared key-value persistence layer that
// session instances coordinate through. Implementations must be safe for
// use by multiple instances (processes) at once; there is no transactional
// guarantee across keys, and writers learn of each other's changes only
// through the Watch notification stream.
package storage

// Change describes a single key mutation observed in the shared store.
type Change struct {
	Key     string
	Value   string // empty when Removed is true
	Removed bool
}

// KeyValueStore provides read/write access to the shared store.
//
// Get returns ok=false when the key is absent; absence is not an error.
// Watch registers a listener for changes; the returned cancel function
// releases it. Delivery is best effort and carries no ordering guarantee
// relative to other notification channels, so consumers must recompute
// state from the store rather than trust the change payload alone.
type KeyValueStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Watch() (changes <-chan Change, cancel func())
}
