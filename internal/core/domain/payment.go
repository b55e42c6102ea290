package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentPurpose identifies what a gateway payment pays for.
type PaymentPurpose string

const (
	PurposeCvUnlock     PaymentPurpose = "cv_unlock"
	PurposeWalletTopup  PaymentPurpose = "wallet_topup"
	PurposeSubscription PaymentPurpose = "subscription"
)

// PaymentStatus represents the lifecycle state of a gateway payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Payment tracks a single gateway charge. Created when neither free quota nor
// wallet balance can fund an unlock (or for a wallet top-up); mutated only by
// the reconciler or an explicit client confirmation.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Purpose       PaymentPurpose  `json:"purpose"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        PaymentStatus   `json:"status"`
	GatewayRef    *string         `json:"gateway_ref,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	ProfileID     *uuid.UUID      `json:"profile_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTerminal returns true once the payment can no longer change state
// (except succeeded -> refunded, which is a provider-side action).
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusSucceeded ||
		p.Status == PaymentStatusFailed ||
		p.Status == PaymentStatusRefunded
}

// paymentTransitions is the allowed status graph. Transitions are monotonic:
// a terminal status never moves backwards, and succeeded never becomes failed.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusSucceeded:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusRefunded:   {},
}

// CanTransition reports whether moving to the given status is legal.
func (p *Payment) CanTransition(to PaymentStatus) bool {
	for _, s := range paymentTransitions[p.Status] {
		if s == to {
			return true
		}
	}
	return false
}
