package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
)

type InMemorySessionStoreSuite struct {
	suite.Suite
	store *InMemorySessionStore
	ctx   context.Context
	now   time.Time
}

func TestInMemorySessionStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemorySessionStoreSuite))
}

func (s *InMemorySessionStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
}

func (s *InMemorySessionStoreSuite) newSession(sid string, userID id.UserID, expires time.Time) *models.Session {
	return &models.Session{
		ID:        sid,
		UserID:    userID,
		Email:     "user@example.com",
		Role:      models.RoleUser,
		Provider:  "credentials",
		CreatedAt: s.now,
		ExpiresAt: expires,
	}
}

func (s *InMemorySessionStoreSuite) TestCreateAndFind() {
	session := s.newSession("sess-1", id.NewUserID(), s.now.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, session))

	found, err := s.store.FindByID(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Equal(session.UserID, found.UserID)

	found.Role = models.RoleAdmin
	again, _ := s.store.FindByID(s.ctx, "sess-1")
	s.Equal(models.RoleUser, again.Role, "returned sessions are copies")
}

func (s *InMemorySessionStoreSuite) TestCreateDuplicate() {
	session := s.newSession("sess-1", id.NewUserID(), s.now.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, session))
	s.ErrorIs(s.store.Create(s.ctx, session), sentinel.ErrConflict)
}

func (s *InMemorySessionStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("sess-1", id.NewUserID(), s.now.Add(time.Hour))))
	s.Require().NoError(s.store.Delete(s.ctx, "sess-1"))
	s.ErrorIs(s.store.Delete(s.ctx, "sess-1"), sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestDeleteByUser() {
	owner := id.NewUserID()
	other := id.NewUserID()
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("a", owner, s.now.Add(time.Hour))))
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("b", owner, s.now.Add(time.Hour))))
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("c", other, s.now.Add(time.Hour))))

	removed, err := s.store.DeleteByUser(s.ctx, owner)
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, err = s.store.FindByID(s.ctx, "c")
	s.NoError(err)
}

func (s *InMemorySessionStoreSuite) TestDeleteExpired() {
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("old", id.NewUserID(), s.now.Add(-time.Minute))))
	s.Require().NoError(s.store.Create(s.ctx, s.newSession("live", id.NewUserID(), s.now.Add(time.Minute))))

	removed, err := s.store.DeleteExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.store.FindByID(s.ctx, "old")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
