// Package coordinator ties the token store, expiry clock, cross-instance
// lock, and broadcast channel into the refresh state machine. One
// coordinator runs per instance; exclusivity across instances comes from
// the lock, while the local refreshing flag only dedupes within the
// instance.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	kiterrors "github.com/sessionkit/sessionkit/internal/errors"
	"github.com/sessionkit/sessionkit/internal/metrics"
	"github.com/sessionkit/sessionkit/lock"
	"github.com/sessionkit/sessionkit/notify"
	"github.com/sessionkit/sessionkit/storage"
	"github.com/sessionkit/sessionkit/token"
)

// Defaults for the monitoring loop.
const (
	DefaultTickInterval     = 1 * time.Second
	DefaultRefreshThreshold = 30 * time.Second
)

// Refresher exchanges a refresh token for a new access token. The network
// call is the coordinator's only suspension point.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
}

// Coordinator watches the access token's time-to-live and refreshes it
// before expiry, at most once across all instances at a time.
type Coordinator struct {
	id        string
	store     *token.Store
	lock      *lock.Lock
	bus       notify.Broadcaster
	refresher Refresher

	interval    time.Duration
	threshold   time.Duration
	autoRefresh bool
	visible     func() bool
	nowTime     func() time.Time
	scheduler   Scheduler
	log         zerolog.Logger
	metrics     *metrics.Metrics
	onRefreshed func(accessToken string)
	onLogout    func(reason string)

	mu          sync.Mutex
	state       State
	refreshing  bool
	lastError   string
	expiry      token.Expiry
	events      chan Event
	stopTick    func()
	cancelBus   func()
	cancelWatch func()
	closed      bool
}

// Option modifies a Coordinator.
type Option func(*Coordinator)

// WithTickInterval sets the monitoring tick interval.
func WithTickInterval(interval time.Duration) Option {
	return func(c *Coordinator) { c.interval = interval }
}

// WithThreshold sets the time-to-live at or below which a refresh is
// triggered.
func WithThreshold(threshold time.Duration) Option {
	return func(c *Coordinator) { c.threshold = threshold }
}

// WithAutoRefresh enables or disables timer-driven refreshes.
// ForceRefresh works either way.
func WithAutoRefresh(enabled bool) Option {
	return func(c *Coordinator) { c.autoRefresh = enabled }
}

// WithVisibility supplies the foreground check. Refreshes are suppressed
// while it returns false so hidden instances do not race for the lock.
func WithVisibility(visible func() bool) Option {
	return func(c *Coordinator) { c.visible = visible }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) { c.nowTime = nowFunc }
}

// WithScheduler replaces the tick scheduler (primarily for testing)
func WithScheduler(scheduler Scheduler) Option {
	return func(c *Coordinator) { c.scheduler = scheduler }
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = logger }
}

// WithInstanceID overrides the generated instance identity (primarily
// for testing). The identity proves lock ownership, nothing more.
func WithInstanceID(id string) Option {
	return func(c *Coordinator) { c.id = id }
}

// WithRegisterer registers the coordinator's Prometheus collectors.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Coordinator) { c.metrics = metrics.New(reg) }
}

// WithOnRefreshed adds a callback invoked with each new access token this
// instance obtains, for hosts that prefer callbacks over Events.
func WithOnRefreshed(fn func(accessToken string)) Option {
	return func(c *Coordinator) { c.onRefreshed = fn }
}

// WithOnLogout replaces the default logout handler.
func WithOnLogout(fn func(reason string)) Option {
	return func(c *Coordinator) { c.onLogout = fn }
}

// New creates a coordinator in StateIdle. Call Start to begin monitoring.
func New(store *token.Store, refreshLock *lock.Lock, bus notify.Broadcaster, refresher Refresher, options ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[coordinator.New] store is required")
	}
	if refreshLock == nil {
		return nil, errors.New("[coordinator.New] lock is required")
	}
	if bus == nil {
		return nil, errors.New("[coordinator.New] bus is required")
	}
	if refresher == nil {
		return nil, errors.New("[coordinator.New] refresher is required")
	}

	c := &Coordinator{
		id:          uuid.NewString(),
		store:       store,
		lock:        refreshLock,
		bus:         bus,
		refresher:   refresher,
		interval:    DefaultTickInterval,
		threshold:   DefaultRefreshThreshold,
		autoRefresh: true,
		visible:     func() bool { return true },
		nowTime:     time.Now,
		scheduler:   TickerScheduler{},
		log:         zerolog.Nop(),
		metrics:     metrics.New(nil),
		state:       StateIdle,
		events:      make(chan Event, 16),
	}
	c.onLogout = func(reason string) {
		c.log.Warn().Str("reason", reason).Msg("Session ended, login required")
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// InstanceID returns this instance's identity.
func (c *Coordinator) InstanceID() string {
	return c.id
}

// Start moves Idle to Monitoring: it computes expiry state immediately,
// subscribes to the broadcast channel and the store's change stream, and
// schedules the tick loop.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return kiterrors.ErrCoordinatorClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return errors.New("[Coordinator.Start] already started")
	}
	c.state = StateMonitoring
	c.mu.Unlock()

	c.recompute()

	busCh, cancelBus := c.bus.Subscribe()
	watchCh, cancelWatch := c.store.Watch()
	go c.consumeBus(busCh)
	go c.consumeWatch(watchCh)

	stop := c.scheduler.Every(c.interval, c.tick)

	c.mu.Lock()
	c.cancelBus = cancelBus
	c.cancelWatch = cancelWatch
	c.stopTick = stop
	c.mu.Unlock()

	c.log.Debug().Str("instance", c.id).Msg("Coordinator monitoring")
	return nil
}

// Stop tears down the tick loop and subscriptions. It does not cancel an
// in-flight refresh: the refresh finishes on its own, still updates the
// store, and releases the lock through its own cleanup.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stopTick, cancelBus, cancelWatch := c.stopTick, c.cancelBus, c.cancelWatch
	c.mu.Unlock()

	if stopTick != nil {
		stopTick()
	}
	if cancelBus != nil {
		cancelBus()
	}
	if cancelWatch != nil {
		cancelWatch()
	}
}

// Events yields the coordinator's lifecycle events. The channel is
// buffered and never closed; events that find a full buffer are dropped.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// Snapshot returns the state as of the last tick or recompute.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:      c.state,
		Refreshing: c.refreshing,
		Role:       c.expiry.Role,
		LastError:  c.lastError,
	}
	if c.expiry.Active {
		expiresAt := c.expiry.ExpiresAt
		timeLeft := c.expiry.TimeLeft
		snap.ExpiresAt = &expiresAt
		snap.TimeLeft = &timeLeft
	}
	return snap
}

// ForceRefresh triggers the refresh path outside the timer, subject to
// the same lock and de-duplication rules. ErrLockHeld means another
// instance is handling it.
func (c *Coordinator) ForceRefresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return kiterrors.ErrCoordinatorClosed
	}
	if c.state == StateFailed {
		c.mu.Unlock()
		return errors.Wrap(kiterrors.ErrRefreshFailed, "session ended")
	}
	if c.refreshing {
		c.mu.Unlock()
		return kiterrors.ErrRefreshInFlight
	}
	c.beginRefreshLocked()
	c.mu.Unlock()

	return c.refresh(ctx)
}

// tick is one pass of the monitoring loop.
func (c *Coordinator) tick() {
	c.mu.Lock()
	if c.closed || c.state == StateFailed {
		c.mu.Unlock()
		return
	}

	expiry, err := c.store.Expiry(c.nowTime())
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("Failed to read token store")
		return
	}
	c.setExpiryLocked(expiry)

	shouldRefresh := c.autoRefresh &&
		!c.refreshing &&
		expiry.Active &&
		expiry.TimeLeft > 0 &&
		expiry.TimeLeft <= c.threshold &&
		c.visible()
	if !shouldRefresh {
		c.mu.Unlock()
		return
	}
	c.beginRefreshLocked()
	c.mu.Unlock()

	// The outcome surfaces via events and lastError, not a return value.
	c.refresh(context.Background())
}

func (c *Coordinator) beginRefreshLocked() {
	c.refreshing = true
	c.state = StateRefreshing
	c.lastError = ""
}

// refresh runs one lock-guarded refresh attempt. The caller must have set
// the refreshing flag via beginRefreshLocked.
func (c *Coordinator) refresh(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		if c.state == StateRefreshing {
			c.state = StateMonitoring
		}
		c.mu.Unlock()
	}()

	acquired, err := c.lock.TryAcquire(c.id)
	if err != nil {
		c.log.Warn().Err(err).Msg("Lock acquisition failed")
		return errors.Wrap(err, "[Coordinator.refresh] acquire lock")
	}
	if !acquired {
		// Not an error: another instance is handling it. This instance
		// observes the outcome via the broadcast or the next store read.
		c.metrics.LockContention.Inc()
		c.log.Debug().Msg("Refresh lock held elsewhere, standing down")
		return kiterrors.ErrLockHeld
	}
	defer func() {
		if err := c.lock.Release(c.id); err != nil {
			// ErrNotOwner means a TTL takeover happened mid-flight; the
			// new owner's record must stay.
			c.log.Debug().Err(err).Msg("Lock release skipped")
		}
	}()

	c.publish(notify.Message{Kind: notify.KindRefreshStart, By: c.id})
	c.metrics.RefreshAttempts.Inc()
	c.log.Info().Str("instance", c.id).Msg("Refreshing access token")

	refreshToken, err := c.store.RefreshToken()
	if err != nil {
		return c.fail(err)
	}
	if refreshToken == "" {
		return c.fail(kiterrors.ErrNoRefreshToken)
	}

	accessToken, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return c.fail(err)
	}

	if err := c.store.SetAccessToken(accessToken); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.setExpiryLocked(token.ExpiryOf(accessToken, c.nowTime()))
	c.mu.Unlock()

	c.publish(notify.Message{Kind: notify.KindRefreshDone, OK: true, Token: accessToken})
	c.metrics.RefreshSuccesses.Inc()
	c.emit(Event{Kind: EventRefreshed, Token: accessToken})
	if c.onRefreshed != nil {
		c.onRefreshed(accessToken)
	}
	c.log.Info().Msg("Access token refreshed")
	return nil
}

// fail ends the session: both tokens are cleared, the outcome is
// broadcast, and the host is told to log out. Failed is terminal; there
// is no retry because a failing refresh token is rarely transient.
func (c *Coordinator) fail(cause error) error {
	c.metrics.RefreshFailures.Inc()
	c.log.Error().Err(cause).Msg("Refresh failed, ending session")

	if err := c.store.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear token store")
	}
	c.publish(notify.Message{Kind: notify.KindRefreshDone, OK: false, Error: cause.Error()})

	c.mu.Lock()
	c.state = StateFailed
	c.lastError = cause.Error()
	c.setExpiryLocked(token.Expiry{})
	c.mu.Unlock()

	c.emit(Event{Kind: EventLoggedOut, Reason: cause.Error()})
	c.onLogout(cause.Error())

	return errors.Wrap(kiterrors.ErrRefreshFailed, cause.Error())
}

// consumeBus reacts to sibling broadcasts. A success means the store has
// the new token, so the local view is recomputed from the store rather
// than from the message payload. A failure is global: the session ends
// here too, without a refresh call of our own.
func (c *Coordinator) consumeBus(messages <-chan notify.Message) {
	for msg := range messages {
		switch msg.Kind {
		case notify.KindRefreshStart:
			c.log.Debug().Str("by", msg.By).Msg("Sibling started a refresh")
		case notify.KindRefreshDone:
			if msg.OK {
				c.recompute()
			} else {
				c.endSession(msg.Error)
			}
		}
	}
}

// consumeWatch is the lower-fidelity fallback signal: any token change in
// the shared store triggers the same idempotent recompute, so broadcast
// and storage notifications may arrive in either order.
func (c *Coordinator) consumeWatch(changes <-chan storage.Change) {
	for change := range changes {
		if change.Key != token.AccessTokenKey && change.Key != token.RefreshTokenKey {
			continue
		}
		c.recompute()
	}
}

// recompute re-reads the store and rederives expiry state.
func (c *Coordinator) recompute() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state == StateFailed {
		return
	}
	expiry, err := c.store.Expiry(c.nowTime())
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read token store")
		return
	}
	c.setExpiryLocked(expiry)
}

// endSession handles a sibling's refresh failure: the local view clears
// and the host is logged out, but no network call is made.
func (c *Coordinator) endSession(reason string) {
	c.mu.Lock()
	if c.closed || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.lastError = reason
	c.setExpiryLocked(token.Expiry{})
	c.mu.Unlock()

	c.log.Warn().Str("reason", reason).Msg("Sibling refresh failed, session ended")
	c.emit(Event{Kind: EventLoggedOut, Reason: reason})
	c.onLogout(reason)
}

func (c *Coordinator) setExpiryLocked(expiry token.Expiry) {
	c.expiry = expiry
	c.metrics.SecondsToExpiry.Set(expiry.TimeLeft.Seconds())
}

func (c *Coordinator) publish(msg notify.Message) {
	if err := c.bus.Publish(msg); err != nil {
		// Best effort: siblings fall back to the storage change signal.
		c.log.Debug().Err(err).Msg("Broadcast failed")
	}
}

func (c *Coordinator) emit(event Event) {
	select {
	case c.events <- event:
	default:
	}
}
