package postgres

import (
	"context"
	"fmt"

	"unlock-ledger/internal/core/domain"
)

// LedgerEventRepo implements ports.LedgerEventRepository. Events are
// append-only.
type LedgerEventRepo struct {
	pool Pool
}

// NewLedgerEventRepo creates a new LedgerEventRepo.
func NewLedgerEventRepo(pool Pool) *LedgerEventRepo {
	return &LedgerEventRepo{pool: pool}
}

// Create persists a ledger event.
func (r *LedgerEventRepo) Create(ctx context.Context, e *domain.LedgerEvent) error {
	query := `INSERT INTO ledger_events (id, event_type, customer_id, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.EventType, e.CustomerID, e.EntityType, e.EntityID, e.Payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create ledger event: %w", err)
	}
	return nil
}
