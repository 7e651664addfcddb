package models

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

// Credentials returns the login request used for auto-login after sign-up.
func (r RegisterRequest) Credentials() LoginRequest {
	return LoginRequest{Email: r.Email, Password: r.Password}
}

// RefreshRequest is the body of POST /refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by POST /login and POST /refresh. RefreshToken is
// optional on refresh (the old one stays valid); User is optional on login.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int          `json:"expires_in"`
	User         *UserProfile `json:"user,omitempty"`
}

// ErrorResponse is the error envelope of the auth backend.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Text returns the most specific non-empty message.
func (e ErrorResponse) Text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Detail != "":
		return e.Detail
	default:
		return e.Error
	}
}
