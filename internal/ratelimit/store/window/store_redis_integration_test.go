//go:build integration

package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatehouse/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	ctx   context.Context
	now   time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, &RedisStoreSuite{redis: containers.GetManager().GetRedis(t)})
}

func (s *RedisStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Now().Truncate(time.Microsecond)
	s.Require().NoError(s.redis.Flush(s.ctx))
}

func (s *RedisStoreSuite) TestRecordUpToMax() {
	store := NewRedisStore(s.redis.Client, "contact")

	for i := range 3 {
		allowed, live, err := store.Record(s.ctx, "ip:1", s.now.Add(time.Duration(i)*time.Millisecond), time.Minute, 3)
		s.Require().NoError(err)
		s.True(allowed)
		s.Len(live, i+1)
	}

	allowed, live, err := store.Record(s.ctx, "ip:1", s.now.Add(time.Second), time.Minute, 3)
	s.Require().NoError(err)
	s.False(allowed)
	s.Len(live, 3)
	s.True(live[0].Equal(s.now))
}

func (s *RedisStoreSuite) TestWindowExpiry() {
	store := NewRedisStore(s.redis.Client, "contact")

	_, _, err := store.Record(s.ctx, "ip:1", s.now, time.Minute, 1)
	s.Require().NoError(err)

	live, err := store.Live(s.ctx, "ip:1", s.now.Add(time.Minute), time.Minute)
	s.Require().NoError(err)
	s.Empty(live)

	allowed, _, err := store.Record(s.ctx, "ip:1", s.now.Add(time.Minute), time.Minute, 1)
	s.Require().NoError(err)
	s.True(allowed)
}

func (s *RedisStoreSuite) TestLimitersDoNotShareQuota() {
	contact := NewRedisStore(s.redis.Client, "contact")
	general := NewRedisStore(s.redis.Client, "general")

	allowed, _, err := contact.Record(s.ctx, "ip:1", s.now, time.Minute, 1)
	s.Require().NoError(err)
	s.True(allowed)

	allowed, _, err = general.Record(s.ctx, "ip:1", s.now, time.Minute, 1)
	s.Require().NoError(err)
	s.True(allowed)
}
