// Package state holds the application-wide view of the signed-in user that
// the CLI reads for its prompt. The session controller keeps it in sync.
package state

import (
	"sync"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
)

// Store is a ProfileStore backed by memory.
type Store struct {
	mu    sync.RWMutex
	user  *models.UserProfile
	token string
}

func New() *Store { return &Store{} }

func (s *Store) Login(user models.UserProfile, accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
	s.token = accessToken
}

func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
}

// Current returns a copy of the signed-in user, or nil.
func (s *Store) Current() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Token returns the access token last pushed by the controller.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Prompt renders the REPL prompt for the current user.
func (s *Store) Prompt() string {
	if u := s.Current(); u != nil {
		return u.Username + "> "
	}
	return "> "
}
