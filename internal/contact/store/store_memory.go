package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"gatehouse/internal/contact/models"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
)

// InMemoryContactStore keeps submissions in process memory.
type InMemoryContactStore struct {
	mu       sync.RWMutex
	contacts map[id.ContactID]*models.Contact
}

func New() *InMemoryContactStore {
	return &InMemoryContactStore{contacts: make(map[id.ContactID]*models.Contact)}
}

func (s *InMemoryContactStore) Create(_ context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contacts[contact.ID]; exists {
		return fmt.Errorf("contact already exists: %w", sentinel.ErrConflict)
	}
	stored := *contact
	s.contacts[contact.ID] = &stored
	return nil
}

// List returns matching contacts newest first and the total match count.
func (s *InMemoryContactStore) List(_ context.Context, q models.Query) ([]*models.Contact, int, error) {
	s.mu.RLock()
	matched := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		copied := *c
		matched = append(matched, &copied)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.Contact) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return matched[start:end], total, nil
}
