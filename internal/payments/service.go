package payments

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"adgen/internal/apperrors"
	"adgen/internal/usage"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, in OrderRequest) (Order, error)
}

type Upgrader interface {
	Upgrade(ctx context.Context, userID string) (usage.Status, error)
}

type ServiceOptions struct {
	Orders   OrderCreator
	Verifier *Verifier
	Upgrader Upgrader
	Logger   *zap.Logger
}

// Service ties order creation and verification to plan upgrades. Orders
// are remembered so a payment can only upgrade the user who created it.
type Service struct {
	orders   OrderCreator
	verifier *Verifier
	upgrader Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]string // order id -> user id
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders:   opts.Orders,
		verifier: opts.Verifier,
		upgrader: opts.Upgrader,
		logger:   logger.Named("payments"),
		pending:  make(map[string]string),
	}
}

func (s *Service) CreateOrder(ctx context.Context, userID, planKey string) (Order, error) {
	if userID == "" {
		return Order{}, apperrors.Unauthenticated()
	}
	plan, err := LookupPlan(planKey)
	if err != nil {
		return Order{}, err
	}

	order, err := s.orders.CreateOrder(ctx, OrderRequest{
		Amount:   plan.Amount,
		Currency: plan.Currency,
		PlanKey:  plan.Key,
		UserID:   userID,
	})
	if err != nil {
		s.logger.Warn("create order failed", zap.String("user_id", userID), zap.Error(err))
		return Order{}, err
	}

	s.mu.Lock()
	s.pending[order.ID] = userID
	s.mu.Unlock()

	s.logger.Info("order created", zap.String("order_id", order.ID), zap.String("user_id", userID), zap.String("plan", plan.Key))
	return order, nil
}

// Confirm verifies a completed checkout and upgrades the paying user.
func (s *Service) Confirm(ctx context.Context, userID string, in Verification) (usage.Status, error) {
	if userID == "" {
		return usage.Status{}, apperrors.Unauthenticated()
	}
	if err := s.verifier.Verify(in); err != nil {
		s.logger.Warn("payment rejected", zap.String("order_id", in.OrderID), zap.Error(err))
		return usage.Status{}, err
	}

	s.mu.Lock()
	owner, ok := s.pending[in.OrderID]
	if ok && owner == userID {
		delete(s.pending, in.OrderID)
	}
	s.mu.Unlock()
	if !ok || owner != userID {
		return usage.Status{}, apperrors.PaymentInvalid("order does not belong to this user")
	}

	status, err := s.upgrader.Upgrade(ctx, userID)
	if err != nil {
		return usage.Status{}, err
	}
	s.logger.Info("payment confirmed", zap.String("order_id", in.OrderID), zap.String("payment_id", in.PaymentID))
	return status, nil
}
