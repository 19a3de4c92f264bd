package usage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPlan    = "plan"
	fieldAdsUsed = "ads_used"
)

// RedisStore keeps each user in a hash usage:<userID>.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, prefix: "usage:"}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (State, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return State{}, fmt.Errorf("usage get: %w", err)
	}
	return decodeState(values), nil
}

func (s *RedisStore) Increment(ctx context.Context, userID string) (State, error) {
	key := s.key(userID)
	var get *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldPlan, string(PlanFree))
		pipe.HIncrBy(ctx, key, fieldAdsUsed, 1)
		get = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return State{}, fmt.Errorf("usage increment: %w", err)
	}
	return decodeState(get.Val()), nil
}

func (s *RedisStore) Upgrade(ctx context.Context, userID string) (State, error) {
	err := s.client.HSet(ctx, s.key(userID), fieldPlan, string(PlanPremium), fieldAdsUsed, 0).Err()
	if err != nil {
		return State{}, fmt.Errorf("usage upgrade: %w", err)
	}
	return State{Plan: PlanPremium}, nil
}

func decodeState(values map[string]string) State {
	st := State{Plan: PlanFree}
	if values[fieldPlan] == string(PlanPremium) {
		st.Plan = PlanPremium
	}
	if n, err := strconv.Atoi(values[fieldAdsUsed]); err == nil && n > 0 {
		st.AdsUsed = n
	}
	return st
}
