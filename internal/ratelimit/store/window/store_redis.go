package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gatehouse:ratelimit:"

// recordScript prunes, counts and conditionally appends in one round trip.
// Scores are unix microseconds and stay strings inside the script so Lua
// number formatting cannot round them. Reply: {allowed, score...}.
var recordScript = redis.NewScript(`
local key = KEYS[1]
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local allowed = 0
if redis.call('ZCARD', key) < max then
  redis.call('ZADD', key, ARGV[1], ARGV[5])
  redis.call('PEXPIRE', key, ARGV[4])
  allowed = 1
end

local reply = {allowed}
local entries = redis.call('ZRANGE', key, 0, -1, 'WITHSCORES')
for i = 2, #entries, 2 do
  table.insert(reply, entries[i])
end
return reply
`)

// RedisStore keeps one sorted set per identity so several instances share
// a quota. Keys expire one window after their last write, so Sweep has
// nothing to do.
type RedisStore struct {
	client    redis.Cmdable
	namespace string
}

// NewRedisStore namespaces keys by limiter name so limiters never share quota.
func NewRedisStore(client redis.Cmdable, limiterName string) *RedisStore {
	return &RedisStore{client: client, namespace: keyPrefix + limiterName + ":"}
}

func (s *RedisStore) key(identity string) string {
	return s.namespace + identity
}

func (s *RedisStore) Record(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, []time.Time, error) {
	reply, err := recordScript.Run(ctx, s.client, []string{s.key(key)},
		now.UnixMicro(),
		now.Add(-window).UnixMicro(),
		max,
		window.Milliseconds(),
		strconv.FormatInt(now.UnixMicro(), 10)+"-"+uuid.NewString(),
	).Slice()
	if err != nil {
		return false, nil, fmt.Errorf("record window entry: %w", err)
	}
	if len(reply) == 0 {
		return false, nil, fmt.Errorf("record window entry: empty reply")
	}

	allowed, _ := reply[0].(int64)
	live := make([]time.Time, 0, len(reply)-1)
	for _, raw := range reply[1:] {
		ts, err := parseScore(raw)
		if err != nil {
			return false, nil, err
		}
		live = append(live, ts)
	}
	return allowed == 1, live, nil
}

func (s *RedisStore) Live(ctx context.Context, key string, now time.Time, window time.Duration) ([]time.Time, error) {
	entries, err := s.client.ZRangeByScoreWithScores(ctx, s.key(key), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.Add(-window).UnixMicro(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read window entries: %w", err)
	}
	live := make([]time.Time, 0, len(entries))
	for _, z := range entries {
		live = append(live, time.UnixMicro(int64(z.Score)))
	}
	return live, nil
}

func (s *RedisStore) Sweep(context.Context, time.Time, time.Duration) (int, error) {
	return 0, nil
}

func parseScore(raw any) (time.Time, error) {
	str, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected score type %T", raw)
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse score %q: %w", str, err)
	}
	return time.UnixMicro(int64(f)), nil
}
