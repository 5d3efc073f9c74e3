package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sessionkit/sessionkit/internal/config"
	"github.com/sessionkit/sessionkit/lock"
	"github.com/sessionkit/sessionkit/notify"
	"github.com/sessionkit/sessionkit/notify/membus"
	"github.com/sessionkit/sessionkit/notify/natsbus"
	"github.com/sessionkit/sessionkit/storage/filestore"
	"github.com/sessionkit/sessionkit/token"
)

// app wires the shared store, lock, bus, and token store for a command.
type app struct {
	cfg       config.Config
	fileStore *filestore.Store
	tokens    *token.Store
	lock      *lock.Lock
	bus       notify.Broadcaster
	busClose  func()
	logger    zerolog.Logger
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	fileStore, err := filestore.New(cfg.GetStoreFolder())
	if err != nil {
		return nil, errors.Wrap(err, "open shared store")
	}

	a := &app{
		cfg:       cfg,
		fileStore: fileStore,
		tokens:    token.NewStore(fileStore),
		lock:      lock.New(fileStore, lock.WithTTL(cfg.GetLockTTL())),
		logger:    logger,
	}

	// Sibling processes share state through the store either way; NATS
	// adds the direct broadcast channel when configured.
	if natsURL := cfg.GetNATSURL(); natsURL != "" {
		bus, err := natsbus.Connect(natsURL, cfg.GetChannelName())
		if err != nil {
			fileStore.Close()
			return nil, errors.Wrap(err, "connect broadcast channel")
		}
		a.bus = bus
		a.busClose = bus.Close
	} else {
		a.bus = membus.New().NewClient()
		a.busClose = func() {}
	}

	return a, nil
}

func (a *app) Close() {
	a.busClose()
	a.fileStore.Close()
}
