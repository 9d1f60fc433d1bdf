package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"gatehouse/internal/auth/models"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/secrets"
)

// UserStore is the subset of the user store the seeder writes through.
type UserStore interface {
	FindOrCreateByEmail(ctx context.Context, email string, user *models.User) (*models.User, error)
}

// DemoUser describes one seeded account. An empty Password seeds a
// federated account.
type DemoUser struct {
	Email    string
	Name     string
	Password string
	Role     models.Role
}

// DefaultUsers are the accounts a fresh development database starts with.
var DefaultUsers = []DemoUser{
	{Email: "admin@example.com", Name: "Site Admin", Password: "admin123", Role: models.RoleAdmin},
	{Email: "moderator@example.com", Name: "Content Moderator", Password: "moderator123", Role: models.RoleModerator},
	{Email: "user@example.com", Name: "Regular User", Password: "user123", Role: models.RoleUser},
	{Email: "federated@example.com", Name: "Federated User", Role: models.RoleUser},
}

// Seeder populates stores with demo data
type Seeder struct {
	users  UserStore
	logger *slog.Logger
	demo   []DemoUser
}

// New creates a seeder. demo defaults to DefaultUsers.
func New(users UserStore, logger *slog.Logger, demo ...DemoUser) *Seeder {
	if len(demo) == 0 {
		demo = DefaultUsers
	}
	return &Seeder{users: users, logger: logger, demo: demo}
}

// SeedAll creates every demo user that does not exist yet. Existing
// accounts are left untouched, so running it twice is harmless.
func (s *Seeder) SeedAll(ctx context.Context) ([]*models.User, error) {
	s.logger.InfoContext(ctx, "seeding demo data...")

	created := 0
	users := make([]*models.User, 0, len(s.demo))
	for _, d := range s.demo {
		candidate, err := newUser(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare %s: %w", d.Email, err)
		}
		user, err := s.users.FindOrCreateByEmail(ctx, d.Email, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", d.Email, err)
		}
		if user.ID == candidate.ID {
			created++
		}
		users = append(users, user)
	}

	s.logger.InfoContext(ctx, "demo data seeded successfully",
		"users", len(users),
		"created", created,
	)
	return users, nil
}

func newUser(ctx context.Context, d DemoUser) (*models.User, error) {
	now := requestcontext.Now(ctx)
	user := &models.User{
		ID:        id.NewUserID(),
		Email:     d.Email,
		Name:      d.Name,
		Role:      d.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.Password != "" {
		hash, err := secrets.Hash(d.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	return user, nil
}
