package models

import "time"

// Session is the canonical client-side authentication state. Empty strings
// stand for "no token"/"no error".
//
// Invariant: IsAuthenticated implies AccessToken != "".
type Session struct {
	User            *UserProfile
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	IsLoading       bool
	Error           string
	IsInitialized   bool
}

// Clone returns a snapshot that shares no memory with s.
func (s Session) Clone() Session {
	s.User = s.User.Clone()
	return s
}

// Reset returns the empty, unauthenticated session. IsInitialized survives
// because the client has already finished its startup restore.
func (s Session) Reset() Session {
	return Session{IsInitialized: s.IsInitialized}
}

// StoredCredential is the persisted token pair.
type StoredCredential struct {
	AccessToken  string
	RefreshToken string
	PersistedAt  time.Time
}

// ScheduledRefresh describes the pending proactive refresh timer.
type ScheduledRefresh struct {
	FireAt     time.Time
	Generation int64
}
