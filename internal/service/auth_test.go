package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/models"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return f[username], nil
}

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	users := fakeUsers{
		"admin":   {ID: "u1", Username: "admin", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true},
		"blocked": {ID: "u2", Username: "blocked", PasswordHash: hash, Role: models.RoleEmployee, IsActive: false},
	}
	return NewAuthService(users, "test-secret", time.Hour)
}

func TestLogin(t *testing.T) {
	svc := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, models.SessionUser{ID: "u1", Username: "admin", Role: models.RoleAdmin}, resp.User)

	user, err := svc.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User, *user)
}

func TestLogin_Rejected(t *testing.T) {
	svc := newAuthFixture(t)

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "admin", "nope"},
		{"unknown user", "ghost", "secret"},
		{"inactive user", "blocked", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestParseToken_Expired(t *testing.T) {
	svc := newAuthFixture(t)
	svc.now = fixedClock(monday10)

	token, err := svc.IssueToken(models.SessionUser{ID: "u1", Username: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)

	svc.now = fixedClock(monday10.Add(2 * time.Hour))
	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := NewAuthService(nil, "one", time.Hour).IssueToken(models.SessionUser{ID: "u1", Role: models.RoleEmployee})
	require.NoError(t, err)

	_, err = NewAuthService(nil, "two", time.Hour).ParseToken(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
