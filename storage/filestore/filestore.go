// Package filestore provides a filesystem-backed KeyValueStore shared by
// sibling processes. Each key is a file inside a base directory; change
// notifications come from an fsnotify watcher on that directory, which is
// how a process observes writes made by its siblings.
package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/sessionkit/sessionkit/storage"
)

const filePerm = 0o600

var _ storage.KeyValueStore = (*Store)(nil)

type Store struct {
	baseDir string
	fsw     *fsnotify.Watcher

	mu       sync.Mutex
	watchers map[int]chan storage.Change
	nextID   int
	closed   bool
}

// New creates a store rooted at baseDir, creating the directory when
// missing, and starts the directory watcher.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] create base dir")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.New] create watcher")
	}
	if err := fsw.Add(baseDir); err != nil {
		fsw.Close()
		return nil, errors.Wrap(err, "[filestore.New] watch base dir")
	}

	s := &Store{
		baseDir:  baseDir,
		fsw:      fsw,
		watchers: make(map[int]chan storage.Change),
	}
	go s.watchLoop()
	return s, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "[filestore.Get] read %q", key)
	}
	return string(data), true, nil
}

// Set writes through a temp file and rename so concurrent readers never
// observe a partial value.
func (s *Store) Set(key, value string) error {
	tmp, err := os.CreateTemp(s.baseDir, "."+key+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "[filestore.Set] temp file for %q", key)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "[filestore.Set] write %q", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "[filestore.Set] close %q", key)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "[filestore.Set] chmod %q", key)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "[filestore.Set] rename %q", key)
	}
	return nil
}

func (s *Store) Remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "[filestore.Remove] remove %q", key)
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

// Close stops the directory watcher and closes all watch channels.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	return s.fsw.Close()
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, key)
}

// watchLoop translates fsnotify events into Change notifications. Rename
// shows up both as the temp file disappearing and the target appearing;
// temp files are filtered by their dot prefix.
func (s *Store) watchLoop() {
	for {
		select {
		case event, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			key := filepath.Base(event.Name)
			if strings.HasPrefix(key, ".") {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				value, exists, err := s.Get(key)
				if err != nil || !exists {
					continue
				}
				s.notify(storage.Change{Key: key, Value: value})
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				s.notify(storage.Change{Key: key, Removed: true})
			}
		case _, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *Store) notify(change storage.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}
