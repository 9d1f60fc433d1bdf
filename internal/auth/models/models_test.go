package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"ADMIN", "MODERATOR", "USER", " USER "} {
		r, err := ParseRole(valid)
		require.NoError(t, err, valid)
		assert.True(t, r.IsValid())
	}

	for _, invalid := range []string{"", "admin", "ROOT", "USERS"} {
		_, err := ParseRole(invalid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), invalid)
	}
}

func TestSession(t *testing.T) {
	now := time.Now()
	s := &Session{
		ID:        "sess",
		UserID:    id.NewUserID(),
		Email:     "a@example.com",
		Role:      RoleModerator,
		ExpiresAt: now.Add(time.Hour),
	}

	assert.False(t, s.IsExpired(now))
	assert.False(t, s.IsExpired(now.Add(time.Hour)))
	assert.True(t, s.IsExpired(now.Add(time.Hour+time.Nanosecond)))

	c := s.Claims()
	assert.Equal(t, s.UserID, c.UserID)
	assert.Equal(t, SourceSession, c.Source)
	assert.True(t, c.HasRole(RoleAdmin, RoleModerator))
	assert.False(t, c.HasRole(RoleAdmin))
}

func TestLoginRequest(t *testing.T) {
	req := &LoginRequest{Email: "  Admin@Example.COM ", Password: "secret"}
	req.Sanitize()
	assert.Equal(t, "admin@example.com", req.Email)
	assert.NoError(t, req.Validate())

	assert.Error(t, (&LoginRequest{Email: "not-an-email", Password: "x"}).Validate())
	assert.Error(t, (&LoginRequest{Email: "a@example.com"}).Validate())
}

func TestUser(t *testing.T) {
	u := &User{ID: id.NewUserID(), Email: "u@example.com", Name: "U", Role: RoleUser}
	assert.True(t, u.IsFederated())
	u.PasswordHash = "$2a$..."
	assert.False(t, u.IsFederated())
	assert.Equal(t, u.ID, u.Identity().ID)
}
