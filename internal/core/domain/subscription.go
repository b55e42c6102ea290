package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the lifecycle state of a plan subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a customer's active plan with its free-unlock quota.
// CvUnlocksUsed counts consumption within the current period; the period
// resets lazily when PeriodResetAt passes (no background job).
type Subscription struct {
	ID                uuid.UUID          `json:"id"`
	CustomerID        uuid.UUID          `json:"customer_id"`
	PlanName          string             `json:"plan_name"`
	DiscountPercent   int                `json:"discount_percent"`
	CvUnlockAllowance int                `json:"cv_unlock_allowance"`
	CvUnlocksUsed     int                `json:"cv_unlocks_used"`
	PeriodResetAt     time.Time          `json:"period_reset_at"`
	Status            SubscriptionStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ResetDue reports whether the quota period boundary has passed.
func (s *Subscription) ResetDue(now time.Time) bool {
	return !now.Before(s.PeriodResetAt)
}

// RemainingFreeUnlocks returns the free unlocks left as of now. If the reset
// boundary has passed the full allowance is available again; the caller must
// apply the reset before recording consumption.
func (s *Subscription) RemainingFreeUnlocks(now time.Time) int {
	if s.ResetDue(now) {
		return s.CvUnlockAllowance
	}
	remaining := s.CvUnlockAllowance - s.CvUnlocksUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NextResetAt advances the period boundary by whole months until it lies in
// the future. Advancing from the stored boundary (not from now) keeps billing
// anniversaries stable even when the subscription sat idle across periods.
func NextResetAt(current, now time.Time) time.Time {
	next := current
	for !now.Before(next) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}
