package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/sentinel"
	id "gatehouse/pkg/domain"
)

const (
	sessionKeyPrefix     = "gatehouse:session:"
	userSessionKeyPrefix = "gatehouse:user_sessions:"
)

type sessionJSON struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Role      string `json:"role"`
	Provider  string `json:"provider"`
	Device    string `json:"device"`
	CreatedAt int64  `json:"created_at"` // Unix nano
	ExpiresAt int64  `json:"expires_at"` // Unix nano
}

func sessionToJSON(s *models.Session) *sessionJSON {
	return &sessionJSON{
		ID:        s.ID,
		UserID:    s.UserID.String(),
		Email:     s.Email,
		Name:      s.Name,
		Image:     s.Image,
		Role:      s.Role.String(),
		Provider:  s.Provider,
		Device:    s.Device,
		CreatedAt: s.CreatedAt.UnixNano(),
		ExpiresAt: s.ExpiresAt.UnixNano(),
	}
}

func sessionFromJSON(j *sessionJSON) (*models.Session, error) {
	userID, err := id.ParseUserID(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	role, err := models.ParseRole(j.Role)
	if err != nil {
		return nil, fmt.Errorf("parse role: %w", err)
	}
	return &models.Session{
		ID:        j.ID,
		UserID:    userID,
		Email:     j.Email,
		Name:      j.Name,
		Image:     j.Image,
		Role:      role,
		Provider:  j.Provider,
		Device:    j.Device,
		CreatedAt: time.Unix(0, j.CreatedAt),
		ExpiresAt: time.Unix(0, j.ExpiresAt),
	}, nil
}

// RedisStore shares sessions across instances. Keys carry a TTL matching
// the session expiry, so expired sessions disappear without a sweep.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func userSessionsKey(userID id.UserID) string {
	return userSessionKeyPrefix + userID.String()
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}

	data, err := json.Marshal(sessionToJSON(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	created, err := s.client.SetNX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !created {
		return fmt.Errorf("session id already in use: %w", sentinel.ErrConflict)
	}

	userKey := userSessionsKey(session.UserID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, userKey, session.ID)
	pipe.Expire(ctx, userKey, ttl+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index session by user: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}

	var j sessionJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return sessionFromJSON(&j)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, userSessionsKey(session.UserID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteByUser(ctx context.Context, userID id.UserID) (int, error) {
	userKey := userSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids)+1)
	for _, sid := range ids {
		keys = append(keys, sessionKey(sid))
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	if err := s.client.Del(ctx, userKey).Err(); err != nil {
		return 0, fmt.Errorf("delete user session index: %w", err)
	}
	return int(removed), nil
}

// DeleteExpired is a no-op; Redis expires session keys itself.
func (s *RedisStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
