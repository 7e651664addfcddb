package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/logging"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultRefreshLeadTime       = 2 * time.Minute
	DefaultSafetyRefreshInterval = 55 * time.Minute
	DefaultMinRefreshDelay       = 5 * time.Second
)

// SchedulerState is the refresh scheduler's position in its life cycle.
type SchedulerState int

const (
	StateIdle SchedulerState = iota
	StateScheduled
	StateRefreshing
	StateTerminated
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRefreshing:
		return "refreshing"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// RefreshFunc performs one token refresh and returns the new token lifetime.
// A zero lifetime means the expiry is unknown.
type RefreshFunc func(ctx context.Context) (time.Duration, error)

// SchedulerConfig tunes refresh timing. Zero values take the defaults.
type SchedulerConfig struct {
	LeadTime       time.Duration
	SafetyInterval time.Duration
	MinDelay       time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.LeadTime <= 0 {
		c.LeadTime = DefaultRefreshLeadTime
	}
	if c.SafetyInterval <= 0 {
		c.SafetyInterval = DefaultSafetyRefreshInterval
	}
	if c.MinDelay <= 0 {
		c.MinDelay = DefaultMinRefreshDelay
	}
	return c
}

// Delay returns how long to wait before refreshing a token that expires in
// expiresIn.
func (c SchedulerConfig) Delay(expiresIn time.Duration) time.Duration {
	return max(expiresIn-c.LeadTime, c.MinDelay)
}

type trigger string

const (
	triggerProactive trigger = "proactive"
	triggerSafety    trigger = "safety"
)

// RefreshScheduler drives proactive token refresh. It owns a one-shot timer
// armed shortly before expiry and a recurring safety timer. A failed
// refresh is never retried: the scheduler terminates and reports the error
// to onFailure.
type RefreshScheduler struct {
	mu        sync.Mutex
	ctx       context.Context
	cfg       SchedulerConfig
	clock     clockwork.Clock
	log       logging.Logger
	refresh   RefreshFunc
	onFailure func(error)

	state SchedulerState
	// epoch changes on Cancel and invalidates everything armed before it.
	epoch int64
	// gen identifies the current one-shot timer.
	gen       int64
	oneShot   clockwork.Timer
	fireAt    time.Time
	safety    clockwork.Timer
	safetyGen int64
}

// NewRefreshScheduler returns an idle scheduler. ctx bounds every
// timer-triggered refresh.
func NewRefreshScheduler(ctx context.Context, cfg SchedulerConfig, clock clockwork.Clock,
	log logging.Logger, refresh RefreshFunc, onFailure func(error)) *RefreshScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &RefreshScheduler{
		ctx:       ctx,
		cfg:       cfg.withDefaults(),
		clock:     clock,
		log:       log.With("component", "refresh_scheduler"),
		refresh:   refresh,
		onFailure: onFailure,
	}
}

// Schedule replaces the pending one-shot timer with one that fires LeadTime
// before expiresIn elapses. A non-positive expiresIn only clears the
// one-shot timer and leaves the safety timer in charge.
func (s *RefreshScheduler) Schedule(expiresIn time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(expiresIn)
}

func (s *RefreshScheduler) scheduleLocked(expiresIn time.Duration) {
	s.stopOneShotLocked()
	if expiresIn <= 0 {
		if s.state != StateRefreshing {
			s.state = StateIdle
		}
		return
	}

	s.gen++
	gen, epoch := s.gen, s.epoch
	delay := s.cfg.Delay(expiresIn)
	s.fireAt = s.clock.Now().Add(delay)
	s.oneShot = s.clock.AfterFunc(delay, func() { s.fire(triggerProactive, epoch, gen) })
	s.state = StateScheduled

	s.log.Debug(s.ctx, "proactive refresh scheduled", "expires_in", expiresIn, "delay", delay, "generation", gen)
}

// StartSafety (re)starts the recurring safety timer.
func (s *RefreshScheduler) StartSafety() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.safety != nil {
		s.safety.Stop()
	}
	s.safetyGen++
	if s.state == StateTerminated {
		s.state = StateIdle
	}
	s.armSafetyLocked()
}

func (s *RefreshScheduler) armSafetyLocked() {
	gen, epoch := s.safetyGen, s.epoch
	s.safety = s.clock.AfterFunc(s.cfg.SafetyInterval, func() { s.fire(triggerSafety, epoch, gen) })
}

// Cancel stops both timers synchronously. Refreshes already in flight
// finish, but their outcome no longer touches the scheduler.
func (s *RefreshScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.stopOneShotLocked()
	if s.safety != nil {
		s.safety.Stop()
		s.safety = nil
	}
	if s.state != StateTerminated {
		s.state = StateIdle
	}
}

// Pending returns the armed one-shot refresh, if any.
func (s *RefreshScheduler) Pending() (models.ScheduledRefresh, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oneShot == nil {
		return models.ScheduledRefresh{}, false
	}
	return models.ScheduledRefresh{FireAt: s.fireAt, Generation: s.gen}, true
}

// SafetyActive reports whether the recurring safety timer is armed.
func (s *RefreshScheduler) SafetyActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safety != nil
}

// State returns the current state.
func (s *RefreshScheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *RefreshScheduler) stopOneShotLocked() {
	if s.oneShot != nil {
		s.oneShot.Stop()
		s.oneShot = nil
	}
	s.fireAt = time.Time{}
}

func (s *RefreshScheduler) fire(t trigger, epoch, gen int64) {
	s.mu.Lock()
	if epoch != s.epoch || s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	switch t {
	case triggerProactive:
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.oneShot = nil
		s.fireAt = time.Time{}
	case triggerSafety:
		if gen != s.safetyGen {
			s.mu.Unlock()
			return
		}
		s.armSafetyLocked()
	}
	if s.state == StateRefreshing {
		s.mu.Unlock()
		s.log.Debug(s.ctx, "refresh already running", "trigger", t)
		return
	}
	s.state = StateRefreshing
	s.mu.Unlock()

	s.log.Debug(s.ctx, "refresh triggered", "trigger", t)
	expiresIn, err := s.refresh(s.ctx)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		s.state = StateIdle
		s.scheduleLocked(expiresIn)
		s.mu.Unlock()
		return
	case errors.Is(err, ErrSuperseded):
		s.state = StateIdle
		s.mu.Unlock()
		return
	}

	s.state = StateTerminated
	s.stopOneShotLocked()
	if s.safety != nil {
		s.safety.Stop()
		s.safety = nil
	}
	onFailure := s.onFailure
	s.mu.Unlock()

	s.log.Warn(s.ctx, "token refresh failed, terminating session", "trigger", t, "error", err)
	if onFailure != nil {
		onFailure(err)
	}
}
