package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/common"
	"github.com/dmitrijs2005/reviewdesk/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const maxErrorBody = 4 << 10

// HTTPClient talks to the REST auth backend.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        logging.Logger
	now        func() time.Time
}

// NewHTTPClient builds a client for baseURL (e.g. "https://api.example.com/auth").
// timeout bounds every request; zero means no client-side timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	if log == nil {
		log = logging.Discard()
	}
	// cookiejar.New never fails with nil options
	jar, _ := cookiejar.New(nil)
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		log: log.With("component", "auth_client"),
		now: time.Now,
	}
}

func (c *HTTPClient) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/login", "", req, &resp); err != nil {
		return nil, err
	}
	c.fillExpiry(&resp)
	return &resp, nil
}

func (c *HTTPClient) Register(ctx context.Context, req models.RegisterRequest) (*models.UserProfile, error) {
	var resp models.UserProfile
	if err := c.do(ctx, http.MethodPost, "/register", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/refresh", "", models.RefreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response without access_token", ErrBadResponse)
	}
	c.fillExpiry(&resp)
	return &resp, nil
}

// Logout revokes the session server-side. 401 counts as success.
func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	err := c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
	if errors.Is(err, ErrUnauthorized) {
		c.log.Debug(ctx, "logout: token already invalid")
		return nil
	}
	return err
}

func (c *HTTPClient) Profile(ctx context.Context, accessToken string) (*models.UserProfile, error) {
	var resp models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/users/me", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// fillExpiry derives expires_in from the JWT exp claim when the server
// omitted it. Opaque tokens are left alone.
func (c *HTTPClient) fillExpiry(resp *models.TokenResponse) {
	if resp.ExpiresIn > 0 || resp.AccessToken == "" {
		return
	}
	exp, err := TokenExpiry(resp.AccessToken)
	if err != nil {
		return
	}
	if secs := int(exp.Sub(c.now()).Seconds()); secs > 0 {
		resp.ExpiresIn = secs
	}
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature;
// verification is the backend's job, the client only needs the timestamp.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: no exp claim", common.ErrInvalidToken)
	}
	return claims.ExpiresAt.Time, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(common.RequestIDHeaderName, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+bearer)
	}

	log := c.log.With("method", method, "path", path, "request_id", reqID)
	started := c.now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn(ctx, "request failed", "error", err)
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	log.Debug(ctx, "request done", "status", resp.StatusCode, "elapsed", c.now().Sub(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrBadResponse, path, err)
	}
	return nil
}

func (c *HTTPClient) apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope models.ErrorResponse
	if json.Unmarshal(data, &envelope) == nil {
		return NewAPIError(resp.StatusCode, envelope.Text())
	}
	return NewAPIError(resp.StatusCode, strings.TrimSpace(string(data)))
}
