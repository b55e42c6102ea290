package postgres

import (
	"context"
	"errors"
	"fmt"

	"unlock-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const priceRuleColumns = `id, nationality, amount, currency, active, created_at, updated_at`

// PriceRuleRepo implements ports.PriceRuleRepository.
type PriceRuleRepo struct {
	pool Pool
}

// NewPriceRuleRepo creates a new PriceRuleRepo.
func NewPriceRuleRepo(pool Pool) *PriceRuleRepo {
	return &PriceRuleRepo{pool: pool}
}

func scanPriceRule(row pgx.Row) (*domain.PriceRule, error) {
	p := &domain.PriceRule{}
	err := row.Scan(
		&p.ID, &p.Nationality, &p.Amount, &p.Currency, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// GetActiveByNationality fetches the active rule for a nationality, nil when
// no nationality-specific rule exists.
func (r *PriceRuleRepo) GetActiveByNationality(ctx context.Context, nationality string) (*domain.PriceRule, error) {
	query := `SELECT ` + priceRuleColumns + ` FROM price_rules
		WHERE nationality = $1 AND active = true`

	p, err := scanPriceRule(r.pool.QueryRow(ctx, query, nationality))
	if err != nil {
		return nil, fmt.Errorf("get price rule by nationality: %w", err)
	}
	return p, nil
}

// GetActiveDefault fetches the active default rule (NULL nationality).
func (r *PriceRuleRepo) GetActiveDefault(ctx context.Context) (*domain.PriceRule, error) {
	query := `SELECT ` + priceRuleColumns + ` FROM price_rules
		WHERE nationality IS NULL AND active = true`

	p, err := scanPriceRule(r.pool.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("get default price rule: %w", err)
	}
	return p, nil
}
