package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/client"
	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/logging"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

const msgSuperseded = "The request was cancelled by a newer sign-in or sign-out."

// CredentialStore is the persistence the controller needs.
// *storage.TokenStore implements it.
type CredentialStore interface {
	ActivityStore
	SetTokens(ctx context.Context, access, refresh string) error
	GetAccessToken(ctx context.Context) string
	GetRefreshToken(ctx context.Context) string
	Credential(ctx context.Context) (models.StoredCredential, bool)
	SetProfile(ctx context.Context, p *models.UserProfile) error
	GetProfile(ctx context.Context) *models.UserProfile
	ClearAll(ctx context.Context)
}

// Config holds the timing knobs of a controller. Zero values take defaults.
type Config struct {
	RefreshLeadTime       time.Duration
	SafetyRefreshInterval time.Duration
	MinRefreshDelay       time.Duration
	ActivityCheckInterval time.Duration
	MaxInactivity         time.Duration
}

// Deps are the collaborators of a Controller. Backend and Store are
// required; the rest fall back to no-op or real-time implementations.
type Deps struct {
	Backend  client.Client
	Store    CredentialStore
	Profiles ProfileStore
	Clock    clockwork.Clock
	Log      logging.Logger
	Metrics  *Metrics
	Config   Config
}

// Controller owns the canonical Session and drives login, registration,
// logout, restore and refresh. Every mutation is published to subscribers
// before the mutating call returns.
//
// Listeners run while the controller serializes mutations, so they may read
// Session but must not call Login, Register, Logout, Refresh or
// UpdateProfile synchronously.
type Controller struct {
	// applyMu serializes mutate-then-publish sequences; mu guards the fields
	// below it and is never held while calling out.
	applyMu sync.Mutex
	mu      sync.Mutex

	session models.Session
	// generation identifies the applied session; it moves only when a new
	// session replaces the current one or the session is torn down.
	generation int64
	// attempt identifies the latest login or registration in flight.
	attempt   int64
	expiresAt time.Time

	backend   client.Client
	store     CredentialStore
	profiles  ProfileStore
	registry  *Registry
	activity  *ActivityMonitor
	scheduler *RefreshScheduler
	clock     clockwork.Clock
	log       logging.Logger
	metrics   *Metrics
	cfg       Config

	refreshGroup singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController wires a controller and its timers. The returned controller
// is uninitialized until RestoreSession runs.
func NewController(deps Deps) *Controller {
	if deps.Backend == nil || deps.Store == nil {
		panic("session: Backend and Store are required")
	}
	if deps.Profiles == nil {
		deps.Profiles = nopProfileStore{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:  deps.Backend,
		store:    deps.Store,
		profiles: deps.Profiles,
		registry: NewRegistry(deps.Log),
		clock:    deps.Clock,
		log:      deps.Log.With("component", "session_controller"),
		metrics:  deps.Metrics,
		cfg:      deps.Config,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.activity = NewActivityMonitor(deps.Clock, deps.Store, deps.Log)
	c.scheduler = NewRefreshScheduler(ctx, SchedulerConfig{
		LeadTime:       deps.Config.RefreshLeadTime,
		SafetyInterval: deps.Config.SafetyRefreshInterval,
		MinDelay:       deps.Config.MinRefreshDelay,
	}, deps.Clock, deps.Log, c.refresh, func(error) {
		c.forcedLogout(ReasonRefreshFailed)
	})
	return c
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Subscribe registers fn for session changes.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	return c.registry.Subscribe(fn)
}

// Scheduler exposes the refresh scheduler for inspection.
func (c *Controller) Scheduler() *RefreshScheduler { return c.scheduler }

// Activity exposes the activity monitor for inspection.
func (c *Controller) Activity() *ActivityMonitor { return c.activity }

// RecordActivity notes a user interaction while signed in.
func (c *Controller) RecordActivity(ctx context.Context) {
	c.RecordEvent(ctx, EventKeyPress)
}

// RecordEvent notes an interaction of the given kind while signed in.
func (c *Controller) RecordEvent(ctx context.Context, kind EventKind) {
	c.mu.Lock()
	authenticated := c.session.IsAuthenticated
	c.mu.Unlock()
	if authenticated {
		c.activity.RecordEvent(ctx, kind)
	}
}

// Login authenticates with credentials. On failure the previous session, if
// any, stays in place and Session.Error carries the user-facing message.
func (c *Controller) Login(ctx context.Context, req models.LoginRequest) error {
	if err := models.Validate(req); err != nil {
		return c.rejectLocal(opLogin, err)
	}

	t := c.begin()
	err := c.login(ctx, t, req)
	c.metrics.recordLogin(resultOf(err))
	return err
}

// Register creates an account and signs into it with the same credentials.
func (c *Controller) Register(ctx context.Context, req models.RegisterRequest) error {
	if err := models.Validate(req); err != nil {
		return c.rejectLocal(opRegister, err)
	}

	t := c.begin()
	if _, err := c.backend.Register(ctx, req); err != nil {
		ae := c.fail(t, opRegister, err)
		c.metrics.recordRegistration(resultOf(ae))
		return ae
	}
	c.metrics.recordRegistration(resultSuccess)
	c.log.Info(ctx, "account registered", "email", req.Email)

	err := c.login(ctx, t, req.Credentials())
	c.metrics.recordLogin(resultOf(err))
	return err
}

// ticket pins a login attempt to the session it started from.
type ticket struct {
	attempt    int64
	generation int64
}

// begin starts a login attempt: it cancels both refresh timers, supersedes
// any older attempt and publishes IsLoading. The current session stays
// valid, so refreshes already in flight still land on it.
func (c *Controller) begin() ticket {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	c.scheduler.Cancel()
	c.attempt++
	t := ticket{attempt: c.attempt, generation: c.generation}
	c.session.IsLoading = true
	c.session.Error = ""
	snap := c.session.Clone()
	c.mu.Unlock()

	c.registry.Notify(snap)
	return t
}

// currentLocked reports whether t is still the latest attempt on the
// session it started from.
func (c *Controller) currentLocked(t ticket) bool {
	return t.attempt == c.attempt && t.generation == c.generation
}

func (c *Controller) login(ctx context.Context, t ticket, req models.LoginRequest) error {
	resp, err := c.backend.Login(ctx, req)
	if err != nil {
		return c.fail(t, opLogin, err)
	}
	if resp.AccessToken == "" {
		return c.fail(t, opLogin, fmt.Errorf("%w: login response has no access token", client.ErrBadResponse))
	}

	user := resp.User
	if user == nil {
		user, err = c.backend.Profile(ctx, resp.AccessToken)
		if err != nil {
			return c.fail(t, opLogin, fmt.Errorf("fetch profile: %w", err))
		}
	}
	expiresIn := time.Duration(resp.ExpiresIn) * time.Second

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return superseded()
	}
	c.generation++
	if err := c.store.SetTokens(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
		c.log.Warn(ctx, "failed to persist tokens", "error", err)
	}
	if err := c.store.SetProfile(ctx, user); err != nil {
		c.log.Warn(ctx, "failed to cache profile", "error", err)
	}
	c.session = models.Session{
		User:            user.Clone(),
		AccessToken:     resp.AccessToken,
		RefreshToken:    resp.RefreshToken,
		IsAuthenticated: true,
		IsInitialized:   c.session.IsInitialized,
	}
	c.armLocked(expiresIn)
	c.activity.RecordActivity(ctx)
	c.startActivityLocked(ctx)
	snap := c.session.Clone()
	c.mu.Unlock()

	c.publish(snap)
	c.log.Info(ctx, "logged in", "user", user.Username, "expires_in", expiresIn)
	return nil
}

// fail records a failed login or registration unless a newer attempt or a
// logout took over. A prior authenticated session keeps running, including
// any tokens a refresh rotated while the attempt was in flight.
func (c *Controller) fail(t ticket, op operation, err error) *AuthError {
	ae := classify(op, err)

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if !c.currentLocked(t) {
		c.mu.Unlock()
		return superseded()
	}
	c.session.IsLoading = false
	c.session.Error = ae.Message
	if c.session.IsAuthenticated {
		c.rearmLocked()
	}
	snap := c.session.Clone()
	c.mu.Unlock()

	c.registry.Notify(snap)
	c.log.Warn(c.ctx, "authentication failed", "error", err, "message", ae.Message)
	return ae
}

// rejectLocal reports input that failed validation before any network call.
func (c *Controller) rejectLocal(op operation, err error) *AuthError {
	ae := classify(op, fmt.Errorf("%w: %w", ErrValidation, err))

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	c.session.Error = ae.Message
	snap := c.session.Clone()
	c.mu.Unlock()

	c.registry.Notify(snap)
	if op == opRegister {
		c.metrics.recordRegistration(resultFailure)
	} else {
		c.metrics.recordLogin(resultFailure)
	}
	return ae
}

// Logout ends the session. Local state is torn down before the best-effort
// backend call, so Logout cannot fail. Calling it on an empty session does
// nothing.
func (c *Controller) Logout(ctx context.Context) {
	c.teardown(ctx, "")
}

func (c *Controller) forcedLogout(reason string) {
	c.metrics.recordForcedLogout(reason)
	c.log.Warn(c.ctx, "forced logout", "reason", reason)
	c.teardown(c.ctx, reason)
}

func (c *Controller) teardown(ctx context.Context, reason string) {
	c.applyMu.Lock()

	c.mu.Lock()
	token := c.session.AccessToken
	if token == "" {
		token = c.store.GetAccessToken(ctx)
	}
	if token == "" && isEmpty(c.session) &&
		c.store.GetRefreshToken(ctx) == "" && c.store.GetProfile(ctx) == nil {
		c.mu.Unlock()
		c.applyMu.Unlock()
		return
	}

	c.generation++
	c.scheduler.Cancel()
	c.activity.Stop()
	c.store.ClearAll(ctx)
	c.session = c.session.Reset()
	c.expiresAt = time.Time{}
	snap := c.session.Clone()
	c.mu.Unlock()

	c.profiles.Logout()
	c.metrics.setAuthenticated(false)
	c.registry.Notify(snap)
	c.applyMu.Unlock()

	if reason == "" {
		c.log.Info(ctx, "logged out")
	}
	if token == "" {
		return
	}
	if err := c.backend.Logout(ctx, token); err != nil {
		c.log.Warn(ctx, "backend logout failed", "error", err)
	}
}

func isEmpty(s models.Session) bool {
	return s.User == nil && s.AccessToken == "" && s.RefreshToken == "" &&
		!s.IsAuthenticated && !s.IsLoading && s.Error == ""
}

// RestoreSession adopts persisted credentials at startup. A complete cached
// profile is trusted as is; otherwise the profile is fetched once and any
// failure ends in a forced logout. Only the first call does anything.
func (c *Controller) RestoreSession(ctx context.Context) error {
	c.mu.Lock()
	if c.session.IsInitialized {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.mu.Unlock()

	cred, ok := c.store.Credential(ctx)
	if !ok {
		c.markInitialized()
		return nil
	}
	access, refresh := cred.AccessToken, cred.RefreshToken
	user := c.store.GetProfile(ctx)
	c.log.Debug(ctx, "restoring stored session", "persisted_at", cred.PersistedAt)

	fetched := false
	if !user.IsComplete() {
		c.log.Debug(ctx, "cached profile incomplete, fetching")
		p, err := c.backend.Profile(ctx, access)
		if err != nil {
			c.markInitialized()
			if c.currentGeneration() != gen {
				return superseded()
			}
			c.forcedLogout(ReasonRestoreFailed)
			return classify(opRestore, err)
		}
		user, fetched = p, true
	}

	var expiresIn time.Duration
	if exp, err := client.TokenExpiry(access); err == nil {
		expiresIn = exp.Sub(c.clock.Now())
		if expiresIn <= 0 {
			expiresIn = time.Nanosecond
		}
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if gen != c.generation {
		c.session.IsInitialized = true
		c.mu.Unlock()
		return superseded()
	}
	if fetched {
		if err := c.store.SetProfile(ctx, user); err != nil {
			c.log.Warn(ctx, "failed to cache profile", "error", err)
		}
	}
	c.session = models.Session{
		User:            user.Clone(),
		AccessToken:     access,
		RefreshToken:    refresh,
		IsAuthenticated: true,
		IsInitialized:   true,
	}
	c.armLocked(expiresIn)
	c.startActivityLocked(ctx)
	snap := c.session.Clone()
	c.mu.Unlock()

	c.publish(snap)
	c.log.Info(ctx, "session restored", "user", user.Username, "fetched", fetched)
	return nil
}

func (c *Controller) markInitialized() {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	c.session.IsInitialized = true
	snap := c.session.Clone()
	c.mu.Unlock()

	c.registry.Notify(snap)
}

// UpdateProfile merges patch into the signed-in user's profile. It is a
// local projection update only; nothing is sent to the backend.
func (c *Controller) UpdateProfile(ctx context.Context, patch models.ProfilePatch) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if c.session.User == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	patch.Apply(c.session.User)
	if err := c.store.SetProfile(ctx, c.session.User); err != nil {
		c.log.Warn(ctx, "failed to cache profile", "error", err)
	}
	snap := c.session.Clone()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// Refresh exchanges the refresh token now instead of waiting for a timer.
// A failure is fatal: the session is force-logged-out.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	authenticated := c.session.IsAuthenticated
	c.mu.Unlock()
	if !authenticated {
		return ErrNotAuthenticated
	}

	expiresIn, err := c.refresh(ctx)
	switch {
	case err == nil:
		c.scheduler.Schedule(expiresIn)
		return nil
	case errors.Is(err, ErrSuperseded):
		return superseded()
	}
	c.forcedLogout(ReasonRefreshFailed)
	return classify(opRefresh, err)
}

// refresh performs one token exchange for the current generation. Callers
// arriving while one is in flight share its result.
func (c *Controller) refresh(ctx context.Context) (time.Duration, error) {
	gen := c.currentGeneration()
	v, err, _ := c.refreshGroup.Do(fmt.Sprintf("refresh-%d", gen), func() (any, error) {
		return c.doRefresh(ctx, gen)
	})
	if err != nil {
		return 0, err
	}
	return v.(time.Duration), nil
}

func (c *Controller) doRefresh(ctx context.Context, gen int64) (time.Duration, error) {
	c.mu.Lock()
	current := c.session.RefreshToken
	c.mu.Unlock()
	if current == "" {
		current = c.store.GetRefreshToken(ctx)
	}
	if current == "" {
		return 0, fmt.Errorf("%w: no refresh token", ErrSessionExpired)
	}

	started := c.clock.Now()
	resp, err := c.backend.Refresh(ctx, current)
	took := c.clock.Since(started)
	if err != nil {
		if c.currentGeneration() != gen {
			c.metrics.recordRefresh(resultSuperseded, took)
			return 0, ErrSuperseded
		}
		c.metrics.recordRefresh(resultFailure, took)
		return 0, fmt.Errorf("refresh: %w", err)
	}

	next := resp.RefreshToken
	if next == "" {
		next = current
	}
	expiresIn := time.Duration(resp.ExpiresIn) * time.Second

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.metrics.recordRefresh(resultSuperseded, took)
		return 0, ErrSuperseded
	}
	if err := c.store.SetTokens(ctx, resp.AccessToken, next); err != nil {
		c.log.Warn(ctx, "failed to persist refreshed tokens", "error", err)
	}
	c.session.AccessToken = resp.AccessToken
	c.session.RefreshToken = next
	if expiresIn > 0 {
		c.expiresAt = c.clock.Now().Add(expiresIn)
	} else {
		c.expiresAt = time.Time{}
	}
	snap := c.session.Clone()
	c.mu.Unlock()

	c.publish(snap)
	c.metrics.recordRefresh(resultSuccess, took)
	c.log.Debug(ctx, "tokens refreshed", "expires_in", expiresIn)
	return expiresIn, nil
}

// Close stops all timers without touching credentials, so the next start
// can restore the session.
func (c *Controller) Close() {
	c.scheduler.Cancel()
	c.activity.Stop()
	c.cancel()
}

// armLocked starts the safety timer and the one-shot timer for a token
// that lives expiresIn.
func (c *Controller) armLocked(expiresIn time.Duration) {
	if expiresIn > 0 {
		c.expiresAt = c.clock.Now().Add(expiresIn)
	} else {
		c.expiresAt = time.Time{}
	}
	c.scheduler.StartSafety()
	c.scheduler.Schedule(expiresIn)
}

// rearmLocked restores the timers of a session that survived a failed login.
func (c *Controller) rearmLocked() {
	var remaining time.Duration
	if !c.expiresAt.IsZero() {
		remaining = max(c.expiresAt.Sub(c.clock.Now()), time.Nanosecond)
	}
	c.scheduler.StartSafety()
	c.scheduler.Schedule(remaining)
}

func (c *Controller) startActivityLocked(ctx context.Context) {
	c.activity.Start(ctx, c.cfg.ActivityCheckInterval, c.cfg.MaxInactivity, func() {
		c.forcedLogout(ReasonInactivity)
	})
}

// publish pushes an authenticated snapshot to the profile store and the
// registry. Callers hold applyMu.
func (c *Controller) publish(snap models.Session) {
	if snap.User != nil {
		c.profiles.Login(*snap.User.Clone(), snap.AccessToken)
	}
	c.metrics.setAuthenticated(snap.IsAuthenticated)
	c.registry.Notify(snap)
}

func (c *Controller) currentGeneration() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func superseded() *AuthError {
	return &AuthError{Kind: ErrSuperseded, Message: msgSuperseded}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, ErrSuperseded):
		return resultSuperseded
	}
	return resultFailure
}
