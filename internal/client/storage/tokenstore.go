package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/logging"
	"github.com/jonboulle/clockwork"
)

// Keys written by the current client.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyPersistedAt  = "persisted_at"
	KeyUser         = "user"
	KeyLastActivity = "last_activity"
)

// LegacyKeys were written by earlier clients. Nothing reads them any more;
// ClearAll deletes them so a logout leaves no credential behind.
var LegacyKeys = []string{
	"token",
	"authToken",
	"auth_token",
	"accessToken",
	"refreshToken",
	"jwt",
	"user_data",
	"userData",
	"currentUser",
	"auth-storage",
	"session_expiry",
	"lastActivity",
}

var managedKeys = []string{KeyAccessToken, KeyRefreshToken, KeyPersistedAt, KeyUser, KeyLastActivity}

// ErrAllBackendsFailed is returned when a write reached no backend at all.
var ErrAllBackendsFailed = errors.New("all storage backends failed")

// TokenStore is the credential store of the session manager.
//
// Write paths return an error only when every backend failed. Read and clear
// paths never fail: a broken backend is logged and treated as "value absent".
type TokenStore struct {
	backends []Backend
	clock    clockwork.Clock
	log      logging.Logger
}

// NewTokenStore builds a store over backends in priority order (primary first).
func NewTokenStore(log logging.Logger, clock clockwork.Clock, backends ...Backend) *TokenStore {
	if log == nil {
		log = logging.Discard()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenStore{backends: backends, clock: clock, log: log.With("component", "token_store")}
}

// SetTokens persists the token pair. An empty refresh token leaves the
// stored one in place (refresh responses may omit it).
func (s *TokenStore) SetTokens(ctx context.Context, access, refresh string) error {
	values := map[string][]byte{
		KeyAccessToken: []byte(access),
		KeyPersistedAt: []byte(s.clock.Now().UTC().Format(time.RFC3339Nano)),
	}
	if refresh != "" {
		values[KeyRefreshToken] = []byte(refresh)
	}
	return s.writeAll(ctx, values)
}

func (s *TokenStore) GetAccessToken(ctx context.Context) string {
	return string(s.read(ctx, KeyAccessToken))
}

func (s *TokenStore) GetRefreshToken(ctx context.Context) string {
	return string(s.read(ctx, KeyRefreshToken))
}

// Credential returns the stored pair, read from a single backend so the two
// tokens always belong together.
func (s *TokenStore) Credential(ctx context.Context) (models.StoredCredential, bool) {
	for _, b := range s.backends {
		access := s.readFrom(ctx, b, KeyAccessToken)
		if len(access) == 0 {
			continue
		}
		cred := models.StoredCredential{
			AccessToken:  string(access),
			RefreshToken: string(s.readFrom(ctx, b, KeyRefreshToken)),
		}
		if ts := s.readFrom(ctx, b, KeyPersistedAt); ts != nil {
			cred.PersistedAt, _ = time.Parse(time.RFC3339Nano, string(ts))
		}
		return cred, true
	}
	return models.StoredCredential{}, false
}

func (s *TokenStore) SetProfile(ctx context.Context, p *models.UserProfile) error {
	if p == nil {
		return s.deleteAll(ctx, KeyUser)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.writeAll(ctx, map[string][]byte{KeyUser: data})
}

// GetProfile returns the cached profile or nil when absent or unreadable.
func (s *TokenStore) GetProfile(ctx context.Context) *models.UserProfile {
	data := s.read(ctx, KeyUser)
	if data == nil {
		return nil
	}
	var p models.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warn(ctx, "cached profile is corrupt, ignoring", "error", err)
		return nil
	}
	return &p
}

func (s *TokenStore) SetLastActivity(ctx context.Context, at time.Time) error {
	return s.writeAll(ctx, map[string][]byte{
		KeyLastActivity: []byte(at.UTC().Format(time.RFC3339Nano)),
	})
}

// LastActivity returns the persisted last interaction time.
func (s *TokenStore) LastActivity(ctx context.Context) (time.Time, bool) {
	data := s.read(ctx, KeyLastActivity)
	if data == nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		s.log.Warn(ctx, "stored last activity is corrupt, ignoring", "error", err)
		return time.Time{}, false
	}
	return at, true
}

// ClearAll removes every managed key and every legacy key from every backend.
func (s *TokenStore) ClearAll(ctx context.Context) {
	keys := make([]string, 0, len(managedKeys)+len(LegacyKeys))
	keys = append(keys, managedKeys...)
	keys = append(keys, LegacyKeys...)
	if err := s.deleteAll(ctx, keys...); err != nil {
		s.log.Warn(ctx, "credential cleanup incomplete", "error", err)
	}
}

func (s *TokenStore) writeAll(ctx context.Context, values map[string][]byte) error {
	var errs []error
	for _, b := range s.backends {
		if err := b.SetMany(ctx, values); err != nil {
			s.log.Warn(ctx, "storage write failed", "backend", b.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	if len(s.backends) > 0 && len(errs) == len(s.backends) {
		return fmt.Errorf("%w: %w", ErrAllBackendsFailed, errors.Join(errs...))
	}
	return nil
}

// deleteAll tries every backend and reports the joined failures.
func (s *TokenStore) deleteAll(ctx context.Context, keys ...string) error {
	var errs []error
	for _, b := range s.backends {
		if err := b.Delete(ctx, keys...); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *TokenStore) read(ctx context.Context, key string) []byte {
	for _, b := range s.backends {
		if v := s.readFrom(ctx, b, key); len(v) > 0 {
			return v
		}
	}
	return nil
}

func (s *TokenStore) readFrom(ctx context.Context, b Backend, key string) []byte {
	v, err := b.Get(ctx, key)
	if err != nil {
		s.log.Warn(ctx, "storage read failed", "backend", b.Name(), "key", key, "error", err)
		return nil
	}
	return v
}
