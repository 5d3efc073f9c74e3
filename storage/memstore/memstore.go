// Package memstore provides an in-memory KeyValueStore. A single Store
// shared between coordinators stands in for the browser's shared storage
// when simulating multiple instances in one process, and backs tests.
package memstore

import (
	"sync"

	"github.com/sessionkit/sessionkit/storage"
)

var _ storage.KeyValueStore = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[int]chan storage.Change
	nextID   int
}

func New() *Store {
	return &Store{
		values:   make(map[string]string),
		watchers: make(map[int]chan storage.Change),
	}
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	s.notify(storage.Change{Key: key, Value: value})
	return nil
}

func (s *Store) Remove(key string) error {
	s.mu.Lock()
	_, ok := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if ok {
		s.notify(storage.Change{Key: key, Removed: true})
	}
	return nil
}

func (s *Store) Watch() (<-chan storage.Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan storage.Change, 16)
	s.watchers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}
	return ch, cancel
}

// notify delivers best effort: a watcher with a full buffer is skipped
// rather than blocking writers.
func (s *Store) notify(change storage.Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}
