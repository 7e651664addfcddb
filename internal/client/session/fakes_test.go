package session

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/client/storage"
	"github.com/jonboulle/clockwork"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend is a scriptable auth backend. Nil hooks fall back to a happy
// path that issues T1/R1 and then T2/R2, T3/R3, ...
type fakeBackend struct {
	mu sync.Mutex

	login    func(models.LoginRequest) (*models.TokenResponse, error)
	register func(models.RegisterRequest) (*models.UserProfile, error)
	refresh  func(string) (*models.TokenResponse, error)
	logout   func(string) error
	profile  func(string) (*models.UserProfile, error)

	loginCalls, registerCalls, refreshCalls, logoutCalls, profileCalls int
	refreshSeq                                                          int
	loggedOutTokens                                                     []string
}

func (f *fakeBackend) Login(_ context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	f.mu.Lock()
	f.loginCalls++
	hook := f.login
	f.mu.Unlock()
	if hook != nil {
		return hook(req)
	}
	return &models.TokenResponse{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: 3600, User: testUser()}, nil
}

func (f *fakeBackend) Register(_ context.Context, req models.RegisterRequest) (*models.UserProfile, error) {
	f.mu.Lock()
	f.registerCalls++
	hook := f.register
	f.mu.Unlock()
	if hook != nil {
		return hook(req)
	}
	return testUser(), nil
}

func (f *fakeBackend) Refresh(_ context.Context, refreshToken string) (*models.TokenResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.refreshSeq++
	seq := f.refreshSeq + 1
	hook := f.refresh
	f.mu.Unlock()
	if hook != nil {
		return hook(refreshToken)
	}
	return &models.TokenResponse{
		AccessToken:  "T" + strconv.Itoa(seq),
		RefreshToken: "R" + strconv.Itoa(seq),
		ExpiresIn:    3600,
	}, nil
}

func (f *fakeBackend) Logout(_ context.Context, accessToken string) error {
	f.mu.Lock()
	f.logoutCalls++
	f.loggedOutTokens = append(f.loggedOutTokens, accessToken)
	hook := f.logout
	f.mu.Unlock()
	if hook != nil {
		return hook(accessToken)
	}
	return nil
}

func (f *fakeBackend) Profile(_ context.Context, accessToken string) (*models.UserProfile, error) {
	f.mu.Lock()
	f.profileCalls++
	hook := f.profile
	f.mu.Unlock()
	if hook != nil {
		return hook(accessToken)
	}
	return testUser(), nil
}

func (f *fakeBackend) calls() (login, register, refresh, logout, profile int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.registerCalls, f.refreshCalls, f.logoutCalls, f.profileCalls
}

func (f *fakeBackend) refreshCount() int {
	_, _, n, _, _ := f.calls()
	return n
}

func testUser() *models.UserProfile {
	return &models.UserProfile{
		ID:        "u-1",
		Username:  "ann",
		FullName:  "Ann Lee",
		Email:     "a@b.com",
		CreatedAt: testEpoch.Add(-24 * time.Hour),
	}
}

// recordingProfiles is a ProfileStore that remembers what it was told.
type recordingProfiles struct {
	mu      sync.Mutex
	user    *models.UserProfile
	token   string
	logins  int
	logouts int
}

func (r *recordingProfiles) Login(user models.UserProfile, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user, r.token = &user, token
	r.logins++
}

func (r *recordingProfiles) Logout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user, r.token = nil, ""
	r.logouts++
}

func (r *recordingProfiles) snapshot() (*models.UserProfile, string, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user.Clone(), r.token, r.logins, r.logouts
}

type harness struct {
	ctrl     *Controller
	backend  *fakeBackend
	primary  *storage.MemoryBackend
	legacy   *storage.MemoryBackend
	store    *storage.TokenStore
	clock    *clockwork.FakeClock
	profiles *recordingProfiles
	metrics  *Metrics
	events   *eventLog
}

// eventLog collects every snapshot the controller publishes.
type eventLog struct {
	mu    sync.Mutex
	snaps []models.Session
}

func (e *eventLog) add(s models.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snaps = append(e.snaps, s)
}

func (e *eventLog) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.snaps)
}

func (e *eventLog) last() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.snaps) == 0 {
		return models.Session{}
	}
	return e.snaps[len(e.snaps)-1]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend:  &fakeBackend{},
		primary:  storage.NewMemoryBackend("primary"),
		legacy:   storage.NewMemoryBackend("legacy"),
		clock:    clockwork.NewFakeClockAt(testEpoch),
		profiles: &recordingProfiles{},
		metrics:  NewMetrics(nil),
		events:   &eventLog{},
	}
	h.store = storage.NewTokenStore(nil, h.clock, h.primary, h.legacy)
	h.ctrl = NewController(Deps{
		Backend:  h.backend,
		Store:    h.store,
		Profiles: h.profiles,
		Clock:    h.clock,
		Metrics:  h.metrics,
	})
	h.ctrl.Subscribe(h.events.add)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Login(context.Background(), models.LoginRequest{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func (h *harness) storedKeys() []string {
	return append(h.primary.Keys(), h.legacy.Keys()...)
}
