// Package history keeps the generated ads of each user, newest first.
package history

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"adgen/internal/creative"
)

// DefaultLimit is how many records are kept per user.
const DefaultLimit = 50

type Store interface {
	Append(ctx context.Context, rec creative.AdRecord) error
	// List returns up to limit records of userID, newest first. limit <= 0
	// means everything kept.
	List(ctx context.Context, userID string, limit int) ([]creative.AdRecord, error)
}

// Tee appends to every store and lists from the first one.
type Tee struct {
	stores []Store
	logger *zap.Logger
}

func NewTee(logger *zap.Logger, stores ...Store) *Tee {
	if logger == nil {
		logger = zap.NewNop()
	}
	var kept []Store
	for _, s := range stores {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Tee{stores: kept, logger: logger.Named("history")}
}

// Append tries every store and joins their errors.
func (t *Tee) Append(ctx context.Context, rec creative.AdRecord) error {
	var errs []error
	for _, s := range t.stores {
		if err := s.Append(ctx, rec); err != nil {
			t.logger.Warn("history append failed", zap.String("record_id", rec.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tee) List(ctx context.Context, userID string, limit int) ([]creative.AdRecord, error) {
	if len(t.stores) == 0 {
		return nil, nil
	}
	return t.stores[0].List(ctx, userID, limit)
}
