package usage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"adgen/internal/apperrors"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client),
	}
}

func TestGateRefusesUnauthenticated(t *testing.T) {
	var reasons []GateState
	g := NewGate(Options{OnRefusal: func(r GateState) { reasons = append(reasons, r) }})

	err := g.Allow(context.Background(), "")

	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
	assert.Equal(t, []GateState{Unauthenticated}, reasons)
}

func TestGateFreeLimit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := NewGate(Options{Store: store, Logger: zaptest.NewLogger(t)})

			for i := 1; i <= 4; i++ {
				require.NoError(t, g.Allow(ctx, "u1"), "generation %d", i)
				st, err := g.RecordGeneration(ctx, "u1")
				require.NoError(t, err)
				assert.Equal(t, i, st.AdsUsed)
			}

			err := g.Allow(ctx, "u1")
			var appErr *apperrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.KindLimitReached, appErr.Kind)

			status, err := g.Status(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, Status{State: FreeAtLimit, Plan: PlanFree, AdsUsed: 4, Limit: 4}, status)

			require.NoError(t, g.Allow(ctx, "u2"), "other users are unaffected")
		})
	}
}

func TestGateUpgradeResetsAndStopsCounting(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := NewGate(Options{Store: store, FreeLimit: 2})

			for i := 0; i < 2; i++ {
				_, err := g.RecordGeneration(ctx, "u1")
				require.NoError(t, err)
			}
			require.Error(t, g.Allow(ctx, "u1"))

			st, err := g.Upgrade(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, Premium, st.State)
			assert.Zero(t, st.AdsUsed)

			for i := 0; i < 5; i++ {
				require.NoError(t, g.Allow(ctx, "u1"))
				st, err = g.RecordGeneration(ctx, "u1")
				require.NoError(t, err)
			}
			assert.Equal(t, Status{State: Premium, Plan: PlanPremium, Limit: 2}, st)
		})
	}
}

func TestGateUpgradeRequiresUser(t *testing.T) {
	_, err := NewGate(Options{}).Upgrade(context.Background(), " ")

	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
}

func TestStatusRemaining(t *testing.T) {
	ctx := context.Background()
	g := NewGate(Options{})

	st, err := g.Status(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, Status{State: FreeUnderLimit, Plan: PlanFree, Limit: 4, Remaining: 4}, st)

	st, err = g.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, st.State)
}

func TestRedisStoreLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStore(client)
	ctx := context.Background()

	_, err := s.Increment(ctx, "tg:42")
	require.NoError(t, err)

	assert.Equal(t, "free", mr.HGet("usage:tg:42", "plan"))
	assert.Equal(t, "1", mr.HGet("usage:tg:42", "ads_used"))

	_, err = s.Upgrade(ctx, "tg:42")
	require.NoError(t, err)
	assert.Equal(t, "premium", mr.HGet("usage:tg:42", "plan"))
	assert.Equal(t, "0", mr.HGet("usage:tg:42", "ads_used"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	g := NewGate(Options{Store: NewRedisStore(client)})

	assert.True(t, errors.Is(g.Allow(context.Background(), "u"), apperrors.ErrInternal))
}
