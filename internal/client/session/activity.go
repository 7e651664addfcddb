package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/logging"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultActivityCheckInterval = 5 * time.Minute
	DefaultMaxInactivity         = 30 * 24 * time.Hour
)

// EventKind is a user interaction the monitor understands.
type EventKind string

const (
	EventMouseDown  EventKind = "mousedown"
	EventMouseMove  EventKind = "mousemove"
	EventClick      EventKind = "click"
	EventKeyPress   EventKind = "keypress"
	EventScroll     EventKind = "scroll"
	EventTouchStart EventKind = "touchstart"
)

var trackedEvents = map[EventKind]struct{}{
	EventMouseDown:  {},
	EventMouseMove:  {},
	EventClick:      {},
	EventKeyPress:   {},
	EventScroll:     {},
	EventTouchStart: {},
}

// ActivityStore persists the last interaction time across restarts.
type ActivityStore interface {
	SetLastActivity(ctx context.Context, at time.Time) error
	LastActivity(ctx context.Context) (time.Time, bool)
}

// ActivityMonitor tracks the last user interaction and periodically checks
// it against an inactivity ceiling. It never touches the network.
type ActivityMonitor struct {
	mu    sync.Mutex
	clock clockwork.Clock
	store ActivityStore
	log   logging.Logger

	last     time.Time
	running  bool
	epoch    uint64
	timer    clockwork.Timer
	interval time.Duration
	ceiling  time.Duration
	onExpire func()
}

func NewActivityMonitor(clock clockwork.Clock, store ActivityStore, log logging.Logger) *ActivityMonitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &ActivityMonitor{
		clock: clock,
		store: store,
		log:   log.With("component", "activity_monitor"),
	}
}

// RecordActivity marks now as the last interaction and persists it.
func (m *ActivityMonitor) RecordActivity(ctx context.Context) {
	now := m.clock.Now()

	m.mu.Lock()
	m.last = now
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	if err := m.store.SetLastActivity(ctx, now); err != nil {
		m.log.Warn(ctx, "failed to persist last activity", "error", err)
	}
}

// RecordEvent records activity for tracked event kinds and reports whether
// kind was tracked.
func (m *ActivityMonitor) RecordEvent(ctx context.Context, kind EventKind) bool {
	if _, ok := trackedEvents[kind]; !ok {
		return false
	}
	m.RecordActivity(ctx)
	return true
}

// LastActivity returns the last known interaction time.
func (m *ActivityMonitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Start begins periodic inactivity checks, replacing any previous run.
// The first check happens one interval from now. onExpire runs at most once
// per Start, after which the monitor stops itself.
func (m *ActivityMonitor) Start(ctx context.Context, interval, maxInactive time.Duration, onExpire func()) {
	if interval <= 0 {
		interval = DefaultActivityCheckInterval
	}
	if maxInactive <= 0 {
		maxInactive = DefaultMaxInactivity
	}

	var persisted time.Time
	var found bool
	if m.store != nil {
		persisted, found = m.store.LastActivity(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	if found && persisted.After(m.last) {
		m.last = persisted
	}
	if m.last.IsZero() {
		m.last = m.clock.Now()
	}

	m.running = true
	m.interval = interval
	m.ceiling = maxInactive
	m.onExpire = onExpire
	m.armLocked()

	m.log.Debug(ctx, "activity monitor started",
		"interval", interval, "max_inactive", maxInactive, "last_activity", m.last)
}

// Stop cancels the periodic check. Safe to call when not running.
func (m *ActivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Running reports whether periodic checks are active.
func (m *ActivityMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *ActivityMonitor) stopLocked() {
	m.running = false
	m.epoch++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *ActivityMonitor) armLocked() {
	epoch := m.epoch
	m.timer = m.clock.AfterFunc(m.interval, func() { m.check(epoch) })
}

func (m *ActivityMonitor) check(epoch uint64) {
	m.mu.Lock()
	if !m.running || epoch != m.epoch {
		m.mu.Unlock()
		return
	}

	idle := m.clock.Since(m.last)
	if idle <= m.ceiling {
		m.armLocked()
		m.mu.Unlock()
		return
	}

	onExpire := m.onExpire
	last := m.last
	m.stopLocked()
	m.mu.Unlock()

	m.log.Info(context.Background(), "inactivity ceiling exceeded",
		"last_activity", last, "idle", idle)
	if onExpire != nil {
		onExpire()
	}
}
