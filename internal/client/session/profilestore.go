package session

import "github.com/dmitrijs2005/reviewdesk/internal/client/models"

// ProfileStore is a secondary state container the controller keeps in sync.
// The controller only writes to it.
type ProfileStore interface {
	Login(user models.UserProfile, accessToken string)
	Logout()
}

type nopProfileStore struct{}

func (nopProfileStore) Login(models.UserProfile, string) {}
func (nopProfileStore) Logout()                          {}
