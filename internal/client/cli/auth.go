package cli

import (
	"context"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/client/session"
	"github.com/dmitrijs2005/reviewdesk/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for name, email and password, creates the account and
// signs into it. The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	var req models.RegisterRequest
	var err error

	if req.FirstName, err = getSimpleText(a.reader, "Enter first name", a.out); err != nil {
		return err
	}
	if req.LastName, err = getSimpleText(a.reader, "Enter last name", a.out); err != nil {
		return err
	}
	if req.Email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	req.Password = string(password)

	return a.session.Register(ctx, req)
}

// Login prompts for credentials and signs in. A failed attempt leaves the
// current session, if any, untouched.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	return a.session.Login(ctx, models.LoginRequest{Email: email, Password: string(password)})
}

// Logout signs out and clears every stored credential.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		return session.ErrNotAuthenticated
	}
	a.session.Logout(ctx)
	return nil
}
