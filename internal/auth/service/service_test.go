package service

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/sentinel"
	dErrors "gatehouse/pkg/domain-errors"
)

func (s *ServiceSuite) TestAuthenticate() {
	s.Run("success returns the minimal identity", func() {
		user := s.newUser("user@example.com", "user123", models.RoleUser)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "user@example.com").Return(user, nil)

		identity, err := s.service.Authenticate(s.ctx, "user@example.com", "user123")
		s.Require().NoError(err)
		s.Equal(user.ID, identity.ID)
		s.Equal(models.RoleUser, identity.Role)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.SignIns.WithLabelValues("success")))
	})

	s.Run("missing fields", func() {
		_, err := s.service.Authenticate(s.ctx, "", "pw")
		s.ErrorIs(err, ErrMissingCredentials)
		_, err = s.service.Authenticate(s.ctx, "user@example.com", "")
		s.ErrorIs(err, ErrMissingCredentials)
	})

	s.Run("unknown user", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").
			Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Authenticate(s.ctx, "ghost@example.com", "pw")
		s.ErrorIs(err, ErrUserNotFound)
		s.True(IsCredentialFailure(err))
	})

	s.Run("federated account has no password", func() {
		user := s.newUser("fed@example.com", "", models.RoleUser)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "fed@example.com").Return(user, nil)

		_, err := s.service.Authenticate(s.ctx, "fed@example.com", "anything")
		s.ErrorIs(err, ErrNoPasswordSet)
	})

	s.Run("wrong password", func() {
		user := s.newUser("user@example.com", "user123", models.RoleUser)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "user@example.com").Return(user, nil)

		_, err := s.service.Authenticate(s.ctx, "user@example.com", "nope")
		s.ErrorIs(err, ErrPasswordMismatch)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.SignIns.WithLabelValues("password_mismatch")))
	})

	s.Run("store failure is internal, not a credential failure", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "user@example.com").
			Return(nil, errors.New("connection refused"))

		_, err := s.service.Authenticate(s.ctx, "user@example.com", "user123")
		s.Require().Error(err)
		s.False(IsCredentialFailure(err))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("cancelled request still completes the compare", func() {
		user := s.newUser("user@example.com", "user123", models.RoleUser)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "user@example.com").Return(user, nil)

		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		identity, err := s.service.Authenticate(ctx, "user@example.com", "user123")
		s.Require().NoError(err)
		s.Equal(user.Email, identity.Email)
	})
}

func (s *ServiceSuite) TestProvisionFederated() {
	s.Run("creates a password-less user on first sign-in", func() {
		profile := &models.FederatedProfile{Subject: "42", Email: "new@example.com", Name: "New", Image: "https://img"}
		s.mockUserStore.EXPECT().FindOrCreateByEmail(gomock.Any(), "new@example.com", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, u *models.User) (*models.User, error) {
				return u, nil
			})

		user, err := s.service.ProvisionFederated(s.ctx, ProviderGoogle, profile)
		s.Require().NoError(err)
		s.True(user.IsFederated())
		s.Equal(models.RoleUser, user.Role)
		s.Equal("https://img", user.Image)
		s.Equal(s.now, user.CreatedAt)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.UsersProvisioned.WithLabelValues(ProviderGoogle)))
	})

	s.Run("returns the existing user", func() {
		existing := s.newUser("admin@example.com", "admin123", models.RoleAdmin)
		s.mockUserStore.EXPECT().FindOrCreateByEmail(gomock.Any(), "admin@example.com", gomock.Any()).
			Return(existing, nil)

		user, err := s.service.ProvisionFederated(s.ctx, ProviderGitHub, &models.FederatedProfile{Email: "admin@example.com"})
		s.Require().NoError(err)
		s.Equal(existing.ID, user.ID)
		s.Equal(models.RoleAdmin, user.Role)
	})

	s.Run("profile without email", func() {
		_, err := s.service.ProvisionFederated(s.ctx, ProviderGitHub, &models.FederatedProfile{Subject: "1"})
		s.ErrorIs(err, ErrProfileIncomplete)
	})
}

func (s *ServiceSuite) TestStartSession() {
	user := s.newUser("mod@example.com", "mod123", models.RoleModerator)

	s.Run("enriches the session with id and role", func() {
		var stored *models.Session
		s.mockSessionStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, session *models.Session) error {
				stored = session
				return nil
			})

		session, err := s.service.StartSession(s.ctx, user.Identity(), ProviderCredentials, "Chrome on Linux")
		s.Require().NoError(err)
		s.Same(stored, session)
		s.NotEmpty(session.ID)
		s.Equal(user.ID, session.UserID)
		s.Equal(models.RoleModerator, session.Role)
		s.Equal("Chrome on Linux", session.Device)
		s.Equal(s.now.Add(30*24*time.Hour), session.ExpiresAt)
	})

	s.Run("session ids are unique", func() {
		s.mockSessionStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		a, err := s.service.StartSession(s.ctx, user.Identity(), ProviderCredentials, "")
		s.Require().NoError(err)
		b, err := s.service.StartSession(s.ctx, user.Identity(), ProviderCredentials, "")
		s.Require().NoError(err)
		s.NotEqual(a.ID, b.ID)
	})

	s.Run("store failure", func() {
		s.mockSessionStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		_, err := s.service.StartSession(s.ctx, user.Identity(), ProviderCredentials, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestEndSession() {
	s.Run("deletes the session", func() {
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), "sid-1").Return(nil)
		s.NoError(s.service.EndSession(s.ctx, "sid-1"))
	})

	s.Run("unknown session is not an error", func() {
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), "gone").Return(sentinel.ErrNotFound)
		s.NoError(s.service.EndSession(s.ctx, "gone"))
	})

	s.Run("empty id is a no-op", func() {
		s.NoError(s.service.EndSession(s.ctx, ""))
	})
}

func (s *ServiceSuite) TestIssueLegacyToken() {
	user := s.newUser("user@example.com", "", models.RoleUser)
	token, claims, err := s.service.IssueLegacyToken(s.ctx, user.Identity())
	s.Require().NoError(err)
	s.NotEmpty(token)
	s.Equal(user.ID, claims.UserID)
	s.Equal(s.now.Add(24*time.Hour), claims.ExpiresAt)
}
