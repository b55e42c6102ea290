package ports

import (
	"context"
	"time"

	"unlock-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- External collaborators ---

// Profile is the slice of a maid profile this service needs: nationality for
// pricing and the listing office for revenue attribution.
type Profile struct {
	ID          uuid.UUID
	Nationality string
	OfficeID    uuid.UUID
}

// ProfileDirectory supplies profile existence and nationality. The directory
// service owns the full profile; unlocking a deleted profile fails here.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, profileID uuid.UUID) (*Profile, error) // nil, nil when not found
}

// CreateIntentRequest holds the input for a gateway payment intent.
type CreateIntentRequest struct {
	Amount   decimal.Decimal
	Currency string
	PayerRef string
	Metadata map[string]string
}

// GatewayIntent is the client-facing confirmation handle for an in-progress charge.
type GatewayIntent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

// GatewayEventKind classifies a webhook event for dispatch.
type GatewayEventKind int

const (
	EventKindIgnored GatewayEventKind = iota
	EventKindSucceeded
	EventKindFailed
)

// GatewayEvent is a verified, provider-agnostic webhook event.
type GatewayEvent struct {
	ID            string
	Type          string
	Kind          GatewayEventKind
	IntentID      string
	FailureReason string
}

// PaymentGateway wraps the card/BNPL provider. Retries and timeouts when
// calling the provider are the adapter's concern; on failure the Payment
// stays pending and the call is safe to retry.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*GatewayIntent, error)
	VerifyWebhook(payload []byte, signature string) (*GatewayEvent, error)
}

// ProcessedEventStore is the reconciler's replay fast path: an atomic
// check-and-set per gateway event id. Losing it (Redis down) is safe because
// confirm/fail are idempotent on their own.
type ProcessedEventStore interface {
	CheckAndSet(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// IdentityClaims holds the verified identity-provider token claims.
type IdentityClaims struct {
	CustomerID uuid.UUID
}

// TokenVerifier validates identity-provider bearer tokens. This service never
// issues tokens.
type TokenVerifier interface {
	Validate(token string) (*IdentityClaims, error)
}

// Notifier is the notification sink: the ledger emits events, delivery is
// owned elsewhere. Implementations must be safe to call best-effort.
type Notifier interface {
	UnlockGranted(ctx context.Context, grant *domain.CvUnlockGrant) error
	PaymentFailed(ctx context.Context, p *domain.Payment) error
	WalletToppedUp(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) error
}

// --- Service ports (business logic) ---

// PricingService resolves unlock prices. Pure reads, deterministic for a
// given rule set.
type PricingService interface {
	ResolvePrice(ctx context.Context, profileID uuid.UUID) (*domain.Quote, error)
}

// QuotaService tracks subscription free-unlock allowances.
type QuotaService interface {
	// RemainingFreeUnlocks is an advisory read; it returns the active
	// subscription (nil when none) and the post-reset remaining count.
	RemainingFreeUnlocks(ctx context.Context, customerID uuid.UUID) (int, *domain.Subscription, error)
	// ConsumeFreeUnlock runs inside the caller's transaction: reload the row
	// under lock, apply a due reset, then consume one slot if any remains.
	ConsumeFreeUnlock(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (bool, error)
}

// UnlockPreview is the price endpoint's answer.
type UnlockPreview struct {
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CanUseFreeUnlock bool            `json:"can_use_free_unlock"`
	FreeRemaining    int             `json:"free_remaining"`
	AlreadyUnlocked  bool            `json:"already_unlocked"`
}

// UnlockResult is the outcome of an unlock request or payment confirmation:
// either a grant exists, or a payment with its confirmation handle is pending.
type UnlockResult struct {
	Grant   *domain.CvUnlockGrant `json:"grant,omitempty"`
	Payment *domain.Payment       `json:"payment,omitempty"`
	Intent  *GatewayIntent        `json:"intent,omitempty"`
}

// UnlockService is the unlock authority: the only component permitted to
// create grants, and the only mutator of payment status.
type UnlockService interface {
	PreviewUnlock(ctx context.Context, customerID, profileID uuid.UUID) (*UnlockPreview, error)
	RequestUnlock(ctx context.Context, customerID, profileID uuid.UUID) (*UnlockResult, error)
	// ConfirmPayment is idempotent: confirming an already-succeeded payment
	// returns the existing result without side effects. customerID must match
	// the payment's owner; callers settling on the gateway's behalf pass the
	// owner id they resolved from the gateway reference.
	ConfirmPayment(ctx context.Context, customerID, paymentID uuid.UUID, externalRef string) (*UnlockResult, error)
	// FailPayment is an idempotent no-op on terminal payments.
	FailPayment(ctx context.Context, paymentID uuid.UUID, reason string) error
}

// WalletService exposes wallet reads and gateway-funded top-ups.
type WalletService interface {
	GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, string, error)
	ListTransactions(ctx context.Context, customerID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	RequestTopup(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*domain.Payment, *GatewayIntent, error)
}

// ReconcilerService consumes asynchronous gateway webhook events.
type ReconcilerService interface {
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}
