package domain

import (
	"time"

	"github.com/google/uuid"
)

// CvUnlockGrant records that a customer has paid (with free quota, wallet
// balance, or a gateway payment) for visibility into a profile's contact
// details. At most one grant ever exists per (customer, profile) pair.
// Grants are created once, never updated, never deleted.
type CvUnlockGrant struct {
	ID         uuid.UUID  `json:"id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	ProfileID  uuid.UUID  `json:"profile_id"`
	PaymentID  *uuid.UUID `json:"payment_id,omitempty"` // nil when funded by quota or wallet
	OfficeID   *uuid.UUID `json:"office_id,omitempty"`  // listing office, for revenue attribution
	CreatedAt  time.Time  `json:"created_at"`
}
