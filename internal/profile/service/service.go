package service

import (
	"context"
	"errors"
	"log/slog"

	authmodels "gatehouse/internal/auth/models"
	"gatehouse/internal/profile/models"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*authmodels.User, error)
	Update(ctx context.Context, user *authmodels.User) error
	Delete(ctx context.Context, userID id.UserID) error
	List(ctx context.Context, q authmodels.UserQuery) ([]*authmodels.User, int, error)
}

// SessionRevoker ends every provider session of a deleted user.
type SessionRevoker interface {
	DeleteByUser(ctx context.Context, userID id.UserID) (int, error)
}

type Service struct {
	users    UserStore
	sessions SessionRevoker
	logger   *slog.Logger
}

func New(users UserStore, sessions SessionRevoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, logger: logger}
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.FromUser(user), nil
}

// Update applies req to the caller's own profile. A role change from a
// caller who is not an administrator is dropped.
func (s *Service) Update(ctx context.Context, caller *authmodels.Claims, req *models.UpdateRequest) (*models.Profile, error) {
	user, err := s.load(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Image != nil {
		user.Image = *req.Image
	}
	if req.Role != nil {
		if caller.Role != authmodels.RoleAdmin {
			s.logger.WarnContext(ctx, "role change ignored for non-admin",
				"user_id", caller.UserID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		} else {
			role, err := authmodels.ParseRole(*req.Role)
			if err != nil {
				return nil, err
			}
			user.Role = role
		}
	}
	user.UpdatedAt = requestcontext.Now(ctx)

	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.translate(err, "failed to update profile")
	}
	return models.FromUser(user), nil
}

// Delete removes userID and ends its sessions. Authorization is the
// caller's responsibility.
func (s *Service) Delete(ctx context.Context, userID id.UserID) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return s.translate(err, "failed to delete user")
	}
	if s.sessions != nil {
		ended, err := s.sessions.DeleteByUser(ctx, userID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to end sessions of deleted user",
				"user_id", userID.String(),
				"error", err,
			)
		} else if ended > 0 {
			s.logger.InfoContext(ctx, "sessions ended for deleted user",
				"user_id", userID.String(),
				"count", ended,
			)
		}
	}
	s.logger.InfoContext(ctx, "user_deleted",
		"user_id", userID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) List(ctx context.Context, q authmodels.UserQuery) ([]*models.Profile, int, error) {
	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return models.FromUsers(users), total, nil
}

func (s *Service) load(ctx context.Context, userID id.UserID) (*authmodels.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.translate(err, "failed to load user")
	}
	return user, nil
}

func (s *Service) translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
