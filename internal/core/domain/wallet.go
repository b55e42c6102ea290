package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a customer's prepaid balance. One wallet exists per customer,
// created lazily with a zero balance on first access. The balance is always
// the running sum of the wallet's transactions.
type Wallet struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TransactionType represents the kind of money movement on a wallet.
type TransactionType string

const (
	TxTypeTopup    TransactionType = "topup"
	TxTypeCvUnlock TransactionType = "cv_unlock"
	TxTypeRefund   TransactionType = "refund"
)

// WalletTransaction is an immutable, append-only ledger entry. Amount is
// signed: debits are negative, credits positive. BalanceAfter snapshots the
// wallet balance as of this entry.
type WalletTransaction struct {
	ID            uuid.UUID       `json:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	TxType        TransactionType `json:"tx_type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceType *string         `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Reference entity types recorded on wallet transactions.
const (
	RefTypeGrant   = "cv_unlock_grant"
	RefTypePayment = "payment"
)
