package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk full")

// brokenBackend fails selected operations and otherwise behaves like memory.
type brokenBackend struct {
	*MemoryBackend
	failGet, failSet, failDelete bool
}

func newBroken(name string) *brokenBackend {
	return &brokenBackend{MemoryBackend: NewMemoryBackend(name)}
}

func (b *brokenBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.failGet {
		return nil, errDisk
	}
	return b.MemoryBackend.Get(ctx, key)
}

func (b *brokenBackend) SetMany(ctx context.Context, values map[string][]byte) error {
	if b.failSet {
		return errDisk
	}
	return b.MemoryBackend.SetMany(ctx, values)
}

func (b *brokenBackend) Delete(ctx context.Context, keys ...string) error {
	if b.failDelete {
		return errDisk
	}
	return b.MemoryBackend.Delete(ctx, keys...)
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newStore(backends ...Backend) *TokenStore {
	return NewTokenStore(nil, clockwork.NewFakeClockAt(epoch), backends...)
}

func TestSetTokens_WritesEveryBackend(t *testing.T) {
	primary, fallback := NewMemoryBackend("primary"), NewMemoryBackend("legacy")
	s := newStore(primary, fallback)
	ctx := context.Background()

	require.NoError(t, s.SetTokens(ctx, "T1", "R1"))

	for _, b := range []*MemoryBackend{primary, fallback} {
		v, _ := b.Get(ctx, KeyAccessToken)
		assert.Equal(t, "T1", string(v), b.Name())
		v, _ = b.Get(ctx, KeyRefreshToken)
		assert.Equal(t, "R1", string(v), b.Name())
	}

	cred, ok := s.Credential(ctx)
	require.True(t, ok)
	assert.Equal(t, models.StoredCredential{AccessToken: "T1", RefreshToken: "R1", PersistedAt: epoch}, cred)
}

func TestSetTokens_PrimaryFailureDoesNotSkipFallback(t *testing.T) {
	primary, fallback := newBroken("primary"), NewMemoryBackend("legacy")
	primary.failSet = true
	s := newStore(primary, fallback)
	ctx := context.Background()

	require.NoError(t, s.SetTokens(ctx, "T1", "R1"))

	v, _ := fallback.Get(ctx, KeyAccessToken)
	assert.Equal(t, "T1", string(v))
	assert.Equal(t, "T1", s.GetAccessToken(ctx))
}

func TestSetTokens_AllBackendsFailing(t *testing.T) {
	a, b := newBroken("a"), newBroken("b")
	a.failSet, b.failSet = true, true
	s := newStore(a, b)

	err := s.SetTokens(context.Background(), "T1", "R1")
	require.ErrorIs(t, err, ErrAllBackendsFailed)
	require.ErrorIs(t, err, errDisk)
}

func TestSetTokens_EmptyRefreshKeepsStoredOne(t *testing.T) {
	s := newStore(NewMemoryBackend("primary"))
	ctx := context.Background()

	require.NoError(t, s.SetTokens(ctx, "T1", "R1"))
	require.NoError(t, s.SetTokens(ctx, "T2", ""))

	assert.Equal(t, "T2", s.GetAccessToken(ctx))
	assert.Equal(t, "R1", s.GetRefreshToken(ctx))
}

func TestRead_FallsBackWhenPrimaryEmptyOrBroken(t *testing.T) {
	ctx := context.Background()

	primary, fallback := newBroken("primary"), NewMemoryBackend("legacy")
	require.NoError(t, fallback.SetMany(ctx, map[string][]byte{KeyAccessToken: []byte("OLD")}))
	s := newStore(primary, fallback)

	assert.Equal(t, "OLD", s.GetAccessToken(ctx), "empty primary")

	primary.failGet = true
	require.NoError(t, primary.MemoryBackend.SetMany(ctx, map[string][]byte{KeyAccessToken: []byte("NEW")}))
	assert.Equal(t, "OLD", s.GetAccessToken(ctx), "broken primary")

	primary.failGet = false
	assert.Equal(t, "NEW", s.GetAccessToken(ctx), "primary wins when readable")
}

func TestCredential_PairComesFromOneBackend(t *testing.T) {
	ctx := context.Background()
	primary, fallback := NewMemoryBackend("primary"), NewMemoryBackend("legacy")
	require.NoError(t, primary.SetMany(ctx, map[string][]byte{KeyAccessToken: []byte("A1")}))
	require.NoError(t, fallback.SetMany(ctx, map[string][]byte{
		KeyAccessToken:  []byte("A0"),
		KeyRefreshToken: []byte("R0"),
	}))
	s := newStore(primary, fallback)

	cred, ok := s.Credential(ctx)
	require.True(t, ok)
	assert.Equal(t, "A1", cred.AccessToken)
	assert.Empty(t, cred.RefreshToken, "must not pair A1 with the fallback's R0")
}

func TestCredential_Absent(t *testing.T) {
	_, ok := newStore(NewMemoryBackend("primary")).Credential(context.Background())
	assert.False(t, ok)
}

func TestProfile_RoundTripAndCorruption(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryBackend("primary")
	s := newStore(primary)

	assert.Nil(t, s.GetProfile(ctx))

	p := &models.UserProfile{ID: "u1", Username: "ann", FullName: "Ann Lee", Email: "a@b.com", CreatedAt: epoch}
	require.NoError(t, s.SetProfile(ctx, p))
	assert.Equal(t, p, s.GetProfile(ctx))

	require.NoError(t, primary.SetMany(ctx, map[string][]byte{KeyUser: []byte("{not json")}))
	assert.Nil(t, s.GetProfile(ctx))

	require.NoError(t, s.SetProfile(ctx, nil))
	assert.Empty(t, primary.Keys())
}

func TestLastActivity_RoundTrip(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryBackend("primary")
	s := newStore(primary)

	_, ok := s.LastActivity(ctx)
	assert.False(t, ok)

	at := epoch.Add(-48 * time.Hour)
	require.NoError(t, s.SetLastActivity(ctx, at))

	got, ok := s.LastActivity(ctx)
	require.True(t, ok)
	assert.True(t, at.Equal(got))

	require.NoError(t, primary.SetMany(ctx, map[string][]byte{KeyLastActivity: []byte("yesterday")}))
	_, ok = s.LastActivity(ctx)
	assert.False(t, ok)
}

func TestClearAll_RemovesManagedAndLegacyKeysEverywhere(t *testing.T) {
	ctx := context.Background()
	primary, fallback := newBroken("primary"), NewMemoryBackend("legacy")
	s := newStore(primary, fallback)

	require.NoError(t, s.SetTokens(ctx, "T1", "R1"))
	require.NoError(t, s.SetProfile(ctx, &models.UserProfile{ID: "u1"}))
	require.NoError(t, s.SetLastActivity(ctx, epoch))
	legacy := map[string][]byte{}
	for _, k := range LegacyKeys {
		legacy[k] = []byte("stale")
	}
	require.NoError(t, fallback.SetMany(ctx, legacy))

	// a failing primary must not stop the legacy cleanup
	primary.failDelete = true
	s.ClearAll(ctx)
	assert.Empty(t, fallback.Keys())

	primary.failDelete = false
	s.ClearAll(ctx)
	assert.Empty(t, primary.Keys())

	assert.Empty(t, s.GetAccessToken(ctx))
	assert.Empty(t, s.GetRefreshToken(ctx))
	assert.Nil(t, s.GetProfile(ctx))
}
