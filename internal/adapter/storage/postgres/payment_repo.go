package postgres

import (
	"context"
	"errors"
	"fmt"

	"unlock-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, customer_id, purpose, profile_id, amount, currency,
	status, gateway_ref, failure_reason, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.Purpose, &p.ProfileID, &p.Amount, &p.Currency,
		&p.Status, &p.GatewayRef, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Create persists a new payment record.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (id, customer_id, purpose, profile_id, amount, currency,
			status, gateway_ref, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.CustomerID, p.Purpose, p.ProfileID, p.Amount, p.Currency,
		p.Status, p.GatewayRef, p.FailureReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment, nil when not found.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate fetches a payment with a row lock inside the transaction.
func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	p, err := scanPayment(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get payment for update: %w", err)
	}
	return p, nil
}

// GetByGatewayRef fetches a payment by its gateway intent reference.
func (r *PaymentRepo) GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_ref = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, ref))
	if err != nil {
		return nil, fmt.Errorf("get payment by gateway ref: %w", err)
	}
	return p, nil
}

// MarkProcessing moves a pending payment to processing and records the gateway
// reference. The status guard in the WHERE clause keeps the transition
// monotonic under concurrent calls.
func (r *PaymentRepo) MarkProcessing(ctx context.Context, id uuid.UUID, gatewayRef string) error {
	query := `UPDATE payments SET status = $1, gateway_ref = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, domain.PaymentStatusProcessing, gatewayRef, id, domain.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("mark payment processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark payment processing: payment %s not pending", id)
	}
	return nil
}

// UpdateStatus writes a new status within a transaction. gatewayRef and
// failureReason are only written when non-nil.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, gatewayRef, failureReason *string) error {
	query := `UPDATE payments SET status = $1,
			gateway_ref = COALESCE($2, gateway_ref),
			failure_reason = COALESCE($3, failure_reason),
			updated_at = NOW()
		WHERE id = $4`

	tag, err := tx.Exec(ctx, query, status, gatewayRef, failureReason, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update payment status: payment %s not found", id)
	}
	return nil
}
