package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"adgen/internal/creative"
)

// RedisStore keeps JSON records in a list history:<userID>, newest at the
// head, trimmed to the limit on every append.
type RedisStore struct {
	client redis.Cmdable
	limit  int
}

func NewRedisStore(client redis.Cmdable, limit int) *RedisStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RedisStore{client: client, limit: limit}
}

func key(userID string) string { return "history:" + userID }

func (s *RedisStore) Append(ctx context.Context, rec creative.AdRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history encode: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key(rec.UserID), payload)
		pipe.LTrim(ctx, key(rec.UserID), 0, int64(s.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string, limit int) ([]creative.AdRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.client.LRange(ctx, key(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}

	out := make([]creative.AdRecord, 0, len(raw))
	for _, item := range raw {
		var rec creative.AdRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
