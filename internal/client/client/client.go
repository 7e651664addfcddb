package client

import (
	"context"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
)

// Client is the auth backend contract used by the session controller.
type Client interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.UserProfile, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Profile(ctx context.Context, accessToken string) (*models.UserProfile, error)
}
