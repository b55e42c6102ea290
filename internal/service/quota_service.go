package service

import (
	"context"
	"fmt"
	"time"

	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// QuotaServiceImpl implements ports.QuotaService. Monthly resets are lazy:
// nothing runs on a timer, a due reset is applied the next time the
// subscription row is touched.
type QuotaServiceImpl struct {
	subRepo ports.SubscriptionRepository
	log     zerolog.Logger
}

// NewQuotaService creates a new QuotaServiceImpl.
func NewQuotaService(subRepo ports.SubscriptionRepository, log zerolog.Logger) *QuotaServiceImpl {
	return &QuotaServiceImpl{subRepo: subRepo, log: log}
}

// RemainingFreeUnlocks is the advisory read used by price previews. It does
// not persist a due reset; it only reports as if the reset had happened.
func (s *QuotaServiceImpl) RemainingFreeUnlocks(ctx context.Context, customerID uuid.UUID) (int, *domain.Subscription, error) {
	sub, err := s.subRepo.GetActiveByCustomer(ctx, customerID)
	if err != nil {
		return 0, nil, apperror.InternalError(fmt.Errorf("load subscription: %w", err))
	}
	if sub == nil {
		return 0, nil, nil
	}
	return sub.RemainingFreeUnlocks(time.Now().UTC()), sub, nil
}

// ConsumeFreeUnlock runs inside the caller's transaction: reload the row
// under lock, apply a due reset, then take one slot with a guarded update.
// A false return means no slot was available, including the race where a
// concurrent consumer took the last one between our read and the update.
func (s *QuotaServiceImpl) ConsumeFreeUnlock(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (bool, error) {
	sub, err := s.subRepo.GetActiveByCustomerForUpdate(ctx, tx, customerID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("lock subscription: %w", err))
	}
	if sub == nil {
		return false, nil
	}

	now := time.Now().UTC()
	if sub.ResetDue(now) {
		resetAt := domain.NextResetAt(sub.PeriodResetAt, now)
		if err := s.subRepo.ApplyPeriodReset(ctx, tx, sub.ID, resetAt); err != nil {
			return false, apperror.InternalError(fmt.Errorf("apply period reset: %w", err))
		}
		s.log.Info().
			Str("subscription_id", sub.ID.String()).
			Time("reset_at", resetAt).
			Msg("subscription quota period reset applied")
	}

	ok, err := s.subRepo.ConsumeFreeUnlock(ctx, tx, sub.ID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("consume free unlock: %w", err))
	}
	return ok, nil
}
