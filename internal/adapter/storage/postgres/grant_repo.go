package postgres

import (
	"context"
	"errors"
	"fmt"

	"unlock-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GrantRepo implements ports.GrantRepository.
type GrantRepo struct {
	pool Pool
}

// NewGrantRepo creates a new GrantRepo.
func NewGrantRepo(pool Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

// Get fetches the grant for a (customer, profile) pair, nil when none exists.
func (r *GrantRepo) Get(ctx context.Context, customerID, profileID uuid.UUID) (*domain.CvUnlockGrant, error) {
	query := `SELECT id, customer_id, profile_id, payment_id, office_id, created_at
		FROM cv_unlock_grants WHERE customer_id = $1 AND profile_id = $2`

	g := &domain.CvUnlockGrant{}
	err := r.pool.QueryRow(ctx, query, customerID, profileID).Scan(
		&g.ID, &g.CustomerID, &g.ProfileID, &g.PaymentID, &g.OfficeID, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

// Insert creates the grant within a transaction. The unique constraint on
// (customer_id, profile_id) makes concurrent winners explicit: ON CONFLICT
// DO NOTHING inserts zero rows for the loser, which returns false so the
// caller treats the pair as already granted.
func (r *GrantRepo) Insert(ctx context.Context, tx pgx.Tx, g *domain.CvUnlockGrant) (bool, error) {
	query := `INSERT INTO cv_unlock_grants (id, customer_id, profile_id, payment_id, office_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (customer_id, profile_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query, g.ID, g.CustomerID, g.ProfileID, g.PaymentID, g.OfficeID, g.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert grant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
