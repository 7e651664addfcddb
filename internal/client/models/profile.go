// Package models defines the client-side data model of the session manager:
// the canonical Session, the cached UserProfile and the wire DTOs of the auth
// backend.
package models

import "time"

// ProfileStats are coarse counters shown next to the user's name.
type ProfileStats struct {
	ReviewCount    int `json:"reviews_count"`
	FollowerCount  int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
}

// UserProfile is the identity and display data of the signed-in user.
// The JSON shape matches GET /users/me.
type UserProfile struct {
	ID        string       `json:"user_id"`
	Username  string       `json:"username"`
	FullName  string       `json:"full_name"`
	Email     string       `json:"email"`
	CreatedAt time.Time    `json:"created_at"`
	Stats     ProfileStats `json:"stats"`
}

// IsComplete reports whether the profile carries real display data. A cached
// profile whose display name is empty or just repeats the username was
// written from a partial payload and must be re-fetched.
func (p *UserProfile) IsComplete() bool {
	if p == nil || p.ID == "" {
		return false
	}
	return p.FullName != "" && p.FullName != p.Username
}

// DisplayName prefers the full name and falls back to the username.
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// Clone returns a deep copy (nil-safe).
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// ProfilePatch is a partial profile update; nil fields are left untouched.
type ProfilePatch struct {
	Username *string
	FullName *string
	Email    *string
	Stats    *ProfileStats
}

// Apply merges the patch into p.
func (pp ProfilePatch) Apply(p *UserProfile) {
	if pp.Username != nil {
		p.Username = *pp.Username
	}
	if pp.FullName != nil {
		p.FullName = *pp.FullName
	}
	if pp.Email != nil {
		p.Email = *pp.Email
	}
	if pp.Stats != nil {
		p.Stats = *pp.Stats
	}
}
