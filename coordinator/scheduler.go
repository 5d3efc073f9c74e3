package coordinator

import (
	"sync"
	"time"
)

// Scheduler runs tick on a fixed interval until the returned stop
// function is called. It exists so tests can drive ticks from a manual
// implementation instead of real timers.
type Scheduler interface {
	Every(interval time.Duration, tick func()) (stop func())
}

// TickerScheduler is the production scheduler, backed by time.Ticker.
// Ticks run sequentially on one goroutine; a tick that performs a refresh
// delays later ticks rather than overlapping them.
type TickerScheduler struct{}

var _ Scheduler = TickerScheduler{}

func (TickerScheduler) Every(interval time.Duration, tick func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				tick()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
