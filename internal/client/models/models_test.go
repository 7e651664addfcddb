package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestUserProfile_IsComplete(t *testing.T) {
	tests := []struct {
		name string
		p    *UserProfile
		want bool
	}{
		{name: "nil", p: nil, want: false},
		{name: "no id", p: &UserProfile{Username: "ann", FullName: "Ann Lee"}, want: false},
		{name: "name equals username", p: &UserProfile{ID: "1", Username: "ann", FullName: "ann"}, want: false},
		{name: "empty name", p: &UserProfile{ID: "1", Username: "ann"}, want: false},
		{name: "real name", p: &UserProfile{ID: "1", Username: "ann", FullName: "Ann Lee"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.IsComplete())
		})
	}
}

func TestUserProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "", (*UserProfile)(nil).DisplayName())
	assert.Equal(t, "ann", (&UserProfile{Username: "ann"}).DisplayName())
	assert.Equal(t, "Ann Lee", (&UserProfile{Username: "ann", FullName: "Ann Lee"}).DisplayName())
}

func TestProfilePatch_Apply_OnlySetFields(t *testing.T) {
	p := &UserProfile{ID: "1", Username: "ann", FullName: "Ann", Email: "a@b.com"}

	ProfilePatch{FullName: strp("Ann Lee"), Stats: &ProfileStats{ReviewCount: 3}}.Apply(p)

	assert.Equal(t, "Ann Lee", p.FullName)
	assert.Equal(t, "ann", p.Username)
	assert.Equal(t, "a@b.com", p.Email)
	assert.Equal(t, 3, p.Stats.ReviewCount)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := Session{User: &UserProfile{ID: "1", Username: "ann"}, AccessToken: "T", IsAuthenticated: true}

	c := s.Clone()
	c.User.Username = "mutated"

	assert.Equal(t, "ann", s.User.Username)
}

func TestSession_ResetKeepsInitialized(t *testing.T) {
	s := Session{
		User:            &UserProfile{ID: "1"},
		AccessToken:     "T",
		RefreshToken:    "R",
		IsAuthenticated: true,
		Error:           "x",
		IsInitialized:   true,
	}

	assert.Equal(t, Session{IsInitialized: true}, s.Reset())
}

func TestRegisterRequest_Credentials(t *testing.T) {
	r := RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.com", Password: "secret123"}
	assert.Equal(t, LoginRequest{Email: "a@b.com", Password: "secret123"}, r.Credentials())
}

func TestErrorResponse_Text(t *testing.T) {
	assert.Equal(t, "m", ErrorResponse{Error: "e", Message: "m", Detail: "d"}.Text())
	assert.Equal(t, "d", ErrorResponse{Error: "e", Detail: "d"}.Text())
	assert.Equal(t, "e", ErrorResponse{Error: "e"}.Text())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(LoginRequest{Email: "a@b.com", Password: "x"}))

	err := Validate(LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, "invalid fields: email, password", err.Error())

	err = Validate(RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.com", Password: "short"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")

	err = Validate(RegisterRequest{LastName: "B", Email: "a@b.com", Password: "long-enough"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first_name")
}
