// Package usage enforces the per-user generation allowance.
package usage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"adgen/internal/apperrors"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// DefaultFreeLimit is the number of generations a free user gets.
const DefaultFreeLimit = 4

// State is the persisted allowance of one user.
type State struct {
	Plan    Plan `json:"plan"`
	AdsUsed int  `json:"adsUsed"`
}

// GateState is the position of a user in the gate's state machine.
type GateState string

const (
	Unauthenticated GateState = "unauthenticated"
	FreeUnderLimit  GateState = "free-under-limit"
	FreeAtLimit     GateState = "free-at-limit"
	Premium         GateState = "premium"
)

// Status is what the surfaces show about a user's allowance.
type Status struct {
	State     GateState `json:"state"`
	Plan      Plan      `json:"plan"`
	AdsUsed   int       `json:"adsUsed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
}

type Store interface {
	Get(ctx context.Context, userID string) (State, error)
	// Increment adds one generation and returns the new state.
	Increment(ctx context.Context, userID string) (State, error)
	// Upgrade sets the premium plan and zeroes the counter.
	Upgrade(ctx context.Context, userID string) (State, error)
}

// RefusalObserver is told why Allow refused a user.
type RefusalObserver func(reason GateState)

type Options struct {
	Store     Store
	FreeLimit int
	OnRefusal RefusalObserver
	Logger    *zap.Logger
}

type Gate struct {
	store     Store
	limit     int
	onRefusal RefusalObserver
	logger    *zap.Logger
}

func NewGate(opts Options) *Gate {
	limit := opts.FreeLimit
	if limit < 1 {
		limit = DefaultFreeLimit
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		store:     store,
		limit:     limit,
		onRefusal: opts.OnRefusal,
		logger:    logger.Named("usage"),
	}
}

func (g *Gate) Limit() int { return g.limit }

// Classify maps a stored state to its gate state.
func (g *Gate) Classify(st State) GateState {
	switch {
	case st.Plan == PlanPremium:
		return Premium
	case st.AdsUsed >= g.limit:
		return FreeAtLimit
	default:
		return FreeUnderLimit
	}
}

// Status reports the gate state of userID. An empty ID is unauthenticated.
func (g *Gate) Status(ctx context.Context, userID string) (Status, error) {
	if strings.TrimSpace(userID) == "" {
		return Status{State: Unauthenticated, Limit: g.limit}, nil
	}
	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return g.status(st), nil
}

func (g *Gate) status(st State) Status {
	out := Status{
		State:   g.Classify(st),
		Plan:    st.Plan,
		AdsUsed: st.AdsUsed,
		Limit:   g.limit,
	}
	if out.Plan == PlanFree && st.AdsUsed < g.limit {
		out.Remaining = g.limit - st.AdsUsed
	}
	return out
}

// Allow refuses unauthenticated users and free users at their limit.
func (g *Gate) Allow(ctx context.Context, userID string) error {
	status, err := g.Status(ctx, userID)
	if err != nil {
		return apperrors.Internal(err)
	}
	switch status.State {
	case Unauthenticated:
		g.refused(userID, status.State)
		return apperrors.Unauthenticated()
	case FreeAtLimit:
		g.refused(userID, status.State)
		return apperrors.LimitReached(status.AdsUsed, status.Limit)
	}
	return nil
}

// RecordGeneration counts one successful generation. Premium users are
// not counted.
func (g *Gate) RecordGeneration(ctx context.Context, userID string) (Status, error) {
	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if st.Plan == PlanPremium {
		return g.status(st), nil
	}
	st, err = g.store.Increment(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if g.Classify(st) == FreeAtLimit {
		g.logger.Info("free limit reached", zap.String("user_id", userID), zap.Int("ads_used", st.AdsUsed))
	}
	return g.status(st), nil
}

// Upgrade moves userID to premium from any state.
func (g *Gate) Upgrade(ctx context.Context, userID string) (Status, error) {
	if strings.TrimSpace(userID) == "" {
		return Status{}, apperrors.Unauthenticated()
	}
	st, err := g.store.Upgrade(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	g.logger.Info("user upgraded", zap.String("user_id", userID))
	return g.status(st), nil
}

func (g *Gate) refused(userID string, reason GateState) {
	g.logger.Debug("generation refused", zap.String("user_id", userID), zap.String("reason", string(reason)))
	if g.onRefusal != nil {
		g.onRefusal(reason)
	}
}
