// Package user persists accounts.
//
// Error contract: lookups of unknown users return sentinel.ErrNotFound
// (wrapped); a duplicate email returns sentinel.ErrConflict.
package user

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
)

// InMemoryUserStore keeps users in process memory.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*models.User)}
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmailLocked(user.Email) != nil {
		return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *InMemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	if existing := s.findByEmailLocked(user.Email); existing != nil && existing.ID != user.ID {
		return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	found := *user
	return &found, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user := s.findByEmailLocked(email)
	if user == nil {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	found := *user
	return &found, nil
}

// FindOrCreateByEmail returns the user registered under email, creating
// user when there is none.
func (s *InMemoryUserStore) FindOrCreateByEmail(_ context.Context, email string, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findByEmailLocked(email); existing != nil {
		found := *existing
		return &found, nil
	}
	stored := *user
	stored.Email = email
	s.users[stored.ID] = &stored
	created := stored
	return &created, nil
}

func (s *InMemoryUserStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	delete(s.users, userID)
	return nil
}

// List returns one page of users matching q and the total match count.
func (s *InMemoryUserStore) List(_ context.Context, q models.UserQuery) ([]*models.User, int, error) {
	s.mu.RLock()
	matched := make([]*models.User, 0, len(s.users))
	search := strings.ToLower(q.Search)
	for _, u := range s.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		found := *u
		matched = append(matched, &found)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.User) int {
		c := compareUsers(a, b, q.SortBy)
		if c == 0 {
			c = strings.Compare(a.ID.String(), b.ID.String())
		}
		if strings.EqualFold(q.SortOrder, "asc") {
			return c
		}
		return -c
	})

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return matched[start:end], total, nil
}

func compareUsers(a, b *models.User, sortBy string) int {
	switch sortBy {
	case models.SortByName:
		return strings.Compare(a.Name, b.Name)
	case models.SortByEmail:
		return strings.Compare(a.Email, b.Email)
	case models.SortByRole:
		return strings.Compare(string(a.Role), string(b.Role))
	default:
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	}
}

func (s *InMemoryUserStore) findByEmailLocked(email string) *models.User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}
