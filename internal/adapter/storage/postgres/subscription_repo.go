package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unlock-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, customer_id, plan_name, discount_percent,
	cv_unlock_allowance, cv_unlocks_used, period_reset_at, status, created_at, updated_at`

// SubscriptionRepo implements ports.SubscriptionRepository.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.PlanName, &s.DiscountPercent,
		&s.CvUnlockAllowance, &s.CvUnlocksUsed, &s.PeriodResetAt, &s.Status,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetActiveByCustomer fetches the active subscription for a customer, nil when
// the customer has none.
func (r *SubscriptionRepo) GetActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE customer_id = $1 AND status = $2`

	s, err := scanSubscription(r.pool.QueryRow(ctx, query, customerID, domain.SubscriptionActive))
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return s, nil
}

// GetActiveByCustomerForUpdate fetches the active subscription with a row lock.
func (r *SubscriptionRepo) GetActiveByCustomerForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE customer_id = $1 AND status = $2 FOR UPDATE`

	s, err := scanSubscription(tx.QueryRow(ctx, query, customerID, domain.SubscriptionActive))
	if err != nil {
		return nil, fmt.Errorf("get active subscription for update: %w", err)
	}
	return s, nil
}

// ApplyPeriodReset zeroes the used counter and advances the reset anchor.
func (r *SubscriptionRepo) ApplyPeriodReset(ctx context.Context, tx pgx.Tx, id uuid.UUID, resetAt time.Time) error {
	query := `UPDATE subscriptions SET cv_unlocks_used = 0, period_reset_at = $1, updated_at = NOW()
		WHERE id = $2`

	tag, err := tx.Exec(ctx, query, resetAt, id)
	if err != nil {
		return fmt.Errorf("apply period reset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("apply period reset: subscription %s not found", id)
	}
	return nil
}

// ConsumeFreeUnlock increments the used counter only while it is below the
// allowance. Returns false when the quota is already exhausted, which can
// happen when a concurrent consumer took the last unit after our read.
func (r *SubscriptionRepo) ConsumeFreeUnlock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	query := `UPDATE subscriptions SET cv_unlocks_used = cv_unlocks_used + 1, updated_at = NOW()
		WHERE id = $1 AND cv_unlocks_used < cv_unlock_allowance`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("consume free unlock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
