package ports

import (
	"context"
	"time"

	"unlock-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error)
	GetByCustomerIDForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error)
	Create(ctx context.Context, wallet *domain.Wallet) error
	CreateTx(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// WalletTransactionRepository is the append-only wallet ledger.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wtx *domain.WalletTransaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	SumByWallet(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

// GrantRepository defines persistence for CV unlock grants.
type GrantRepository interface {
	Get(ctx context.Context, customerID, profileID uuid.UUID) (*domain.CvUnlockGrant, error)
	// Insert attempts to create the grant. It returns false without error when
	// the (customer, profile) uniqueness constraint was hit, meaning a grant
	// already exists: the losing writer must treat that as success.
	Insert(ctx context.Context, tx pgx.Tx, grant *domain.CvUnlockGrant) (bool, error)
}

// PaymentRepository defines persistence operations for gateway payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error)
	GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, gatewayRef string) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, gatewayRef, failureReason *string) error
}

// SubscriptionRepository defines persistence for plan subscriptions and their
// free-unlock quota.
type SubscriptionRepository interface {
	GetActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Subscription, error)
	GetActiveByCustomerForUpdate(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*domain.Subscription, error)
	// ApplyPeriodReset zeroes the used counter and moves the boundary.
	ApplyPeriodReset(ctx context.Context, tx pgx.Tx, id uuid.UUID, resetAt time.Time) error
	// ConsumeFreeUnlock increments the used counter guarded by the allowance.
	// Returns false when the quota was already fully consumed: a losing
	// concurrent writer observes failure and falls through to paid paths.
	ConsumeFreeUnlock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// PriceRuleRepository defines read access to the price list.
type PriceRuleRepository interface {
	GetActiveByNationality(ctx context.Context, nationality string) (*domain.PriceRule, error)
	GetActiveDefault(ctx context.Context) (*domain.PriceRule, error)
}

// LedgerEventRepository is the durable half of the notification sink.
type LedgerEventRepository interface {
	Create(ctx context.Context, ev *domain.LedgerEvent) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
