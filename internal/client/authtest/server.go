// Package authtest runs an in-process auth backend speaking the REST
// contract of client.HTTPClient. It issues real HS256 access tokens and
// rotating refresh tokens, and lets tests inject failures per endpoint.
package authtest

import (
	"crypto/subtle"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/common"
	"github.com/dmitrijs2005/reviewdesk/internal/cryptox"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

// Endpoint paths.
const (
	PathLogin    = "/login"
	PathRegister = "/register"
	PathRefresh  = "/refresh"
	PathLogout   = "/logout"
	PathProfile  = "/users/me"
)

// CookieName is the session cookie set on login.
const CookieName = "rd_session"

// Options configure a Server. Zero values take defaults.
type Options struct {
	Clock      clockwork.Clock
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Behavior switches between protocol variants and injected failures.
type Behavior struct {
	// OmitUserOnLogin drops the user object from login responses.
	OmitUserOnLogin bool
	// OmitExpiresIn drops expires_in; clients must read the JWT exp claim.
	OmitExpiresIn bool
	// KeepRefreshToken makes refresh responses omit refresh_token and keeps
	// the presented token valid.
	KeepRefreshToken bool
	// Failures maps an endpoint path to the status it answers with.
	Failures map[string]int
}

type account struct {
	profile  models.UserProfile
	salt     []byte
	verifier []byte
}

type refreshEntry struct {
	userID  string
	expires time.Time
}

// Server is a fake auth backend.
type Server struct {
	mu       sync.Mutex
	opts     Options
	behavior Behavior
	accounts map[string]*account // by email
	byID     map[string]*account
	refresh  map[string]refreshEntry
	revoked  map[string]struct{}
	calls    map[string]int
	cookies  map[string]int

	echo *echo.Echo
	ts   *httptest.Server
}

// NewServer starts a fake backend. Call Close when done.
func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if len(opts.Secret) == 0 {
		opts.Secret = common.GenerateRandByteArray(32)
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}

	s := &Server{
		opts:     opts,
		accounts: make(map[string]*account),
		byID:     make(map[string]*account),
		refresh:  make(map[string]refreshEntry),
		revoked:  make(map[string]struct{}),
		calls:    make(map[string]int),
		cookies:  make(map[string]int),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.track)
	e.POST(PathRegister, s.handleRegister)
	e.POST(PathLogin, s.handleLogin)
	e.POST(PathRefresh, s.handleRefresh)
	e.POST(PathLogout, s.handleLogout)
	e.GET(PathProfile, s.handleProfile)

	s.echo = e
	s.ts = httptest.NewServer(e)
	return s
}

// URL is the base URL of the server.
func (s *Server) URL() string { return s.ts.URL }

func (s *Server) Close() { s.ts.Close() }

// SetBehavior replaces the current behavior.
func (s *Server) SetBehavior(b Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behavior = b
}

// Fail makes path answer with status until cleared with status 0.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.behavior.Failures == nil {
		s.behavior.Failures = make(map[string]int)
	}
	if status == 0 {
		delete(s.behavior.Failures, path)
		return
	}
	s.behavior.Failures[path] = status
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// CookieCalls returns how many requests to path carried the session cookie.
func (s *Server) CookieCalls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookies[path]
}

// AddUser creates an account directly and returns its profile.
func (s *Server) AddUser(req models.RegisterRequest) models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(req).profile
}

// RevokeAll invalidates every issued access and refresh token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]refreshEntry)
	s.opts.Secret = common.GenerateRandByteArray(32)
}

func (s *Server) track(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path

		s.mu.Lock()
		s.calls[path]++
		if _, err := c.Cookie(CookieName); err == nil {
			s.cookies[path]++
		}
		status := s.behavior.Failures[path]
		s.mu.Unlock()

		if status != 0 {
			return echo.NewHTTPError(status, http.StatusText(status))
		}
		return next(c)
	}
}

func (s *Server) handleRegister(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := models.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[strings.ToLower(req.Email)]; ok {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	acc := s.createLocked(req)
	return c.JSON(http.StatusCreated, acc.profile)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(req.Email)]
	if !ok || !checkVerifier(acc.verifier, cryptox.DeriveMasterKey([]byte(req.Password), acc.salt)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	resp, err := s.issueLocked(acc.profile.ID)
	if err != nil {
		return err
	}
	if !s.behavior.OmitUserOnLogin {
		p := acc.profile
		resp.User = &p
	}
	c.SetCookie(&http.Cookie{Name: CookieName, Value: uuid.NewString(), Path: "/", HttpOnly: true})
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.refresh[req.RefreshToken]
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown refresh token")
	}
	if entry.expires.Before(s.opts.Clock.Now()) {
		delete(s.refresh, req.RefreshToken)
		return echo.NewHTTPError(http.StatusUnauthorized, common.ErrRefreshTokenExpired.Error())
	}

	if s.behavior.KeepRefreshToken {
		access, err := GenerateToken(entry.userID, s.opts.Secret, s.opts.Clock.Now(), s.opts.AccessTTL)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "token generation failed")
		}
		return c.JSON(http.StatusOK, s.tokenResponse(access, ""))
	}

	delete(s.refresh, req.RefreshToken)
	resp, err := s.issueLocked(entry.userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLogout(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, token, err := s.authorizeLocked(c)
	if err != nil {
		return err
	}
	s.revoked[token] = struct{}{}
	for rt, entry := range s.refresh {
		if entry.userID == userID {
			delete(s.refresh, rt)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleProfile(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, _, err := s.authorizeLocked(c)
	if err != nil {
		return err
	}
	acc, ok := s.byID[userID]
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	return c.JSON(http.StatusOK, acc.profile)
}

func (s *Server) authorizeLocked(c echo.Context) (userID, token string, err error) {
	header := c.Request().Header.Get(common.AuthorizationHeaderName)
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok || token == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	if _, gone := s.revoked[token]; gone {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
	}
	userID, err = UserIDFromToken(token, s.opts.Secret, s.opts.Clock.Now())
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return userID, token, nil
}

func (s *Server) createLocked(req models.RegisterRequest) *account {
	salt := common.GenerateRandByteArray(16)
	username, _, _ := strings.Cut(strings.ToLower(req.Email), "@")
	acc := &account{
		profile: models.UserProfile{
			ID:        uuid.NewString(),
			Username:  username,
			FullName:  strings.TrimSpace(req.FirstName + " " + req.LastName),
			Email:     req.Email,
			CreatedAt: s.opts.Clock.Now().UTC(),
		},
		salt:     salt,
		verifier: cryptox.DeriveMasterKey([]byte(req.Password), salt),
	}
	s.accounts[strings.ToLower(req.Email)] = acc
	s.byID[acc.profile.ID] = acc
	return acc
}

func (s *Server) issueLocked(userID string) (*models.TokenResponse, error) {
	now := s.opts.Clock.Now()
	access, err := GenerateToken(userID, s.opts.Secret, now, s.opts.AccessTTL)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "token generation failed")
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "token generation failed")
	}
	s.refresh[refresh] = refreshEntry{userID: userID, expires: now.Add(s.opts.RefreshTTL)}
	return s.tokenResponse(access, refresh), nil
}

func (s *Server) tokenResponse(access, refresh string) *models.TokenResponse {
	resp := &models.TokenResponse{AccessToken: access, RefreshToken: refresh}
	if !s.behavior.OmitExpiresIn {
		resp.ExpiresIn = int(s.opts.AccessTTL / time.Second)
	}
	return resp
}

func checkVerifier(verifier, candidate []byte) bool {
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}
