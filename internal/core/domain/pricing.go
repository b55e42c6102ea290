package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceRule defines the unlock price for a nationality, or the default price
// when Nationality is nil. Resolution order: nationality-specific active
// rule, else default active rule, else a configured fallback.
type PriceRule struct {
	ID          uuid.UUID       `json:"id"`
	Nationality *string         `json:"nationality,omitempty"` // nil = default rule
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Quote is a resolved unlock price.
type Quote struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ApplyDiscount applies a plan's percentage discount to a base price.
// Discounted prices round half-up to the whole currency unit; list prices in
// this marketplace are whole-unit amounts.
func ApplyDiscount(base decimal.Decimal, discountPercent int) decimal.Decimal {
	if discountPercent <= 0 {
		return base
	}
	if discountPercent >= 100 {
		return decimal.Zero
	}
	factor := decimal.NewFromInt(int64(100 - discountPercent)).Div(decimal.NewFromInt(100))
	return base.Mul(factor).Round(0)
}
