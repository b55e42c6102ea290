package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ledger event types emitted to the notification sink.
const (
	EventUnlockGranted  = "unlock_granted"
	EventPaymentFailed  = "payment_failed"
	EventWalletToppedUp = "wallet_topped_up"
)

// LedgerEvent is a persisted notification record. Delivery to downstream
// channels (push, email) is owned by a separate system; this service only
// emits and stores the trail.
type LedgerEvent struct {
	ID         uuid.UUID `json:"id"`
	EventType  string    `json:"event_type"`
	CustomerID uuid.UUID `json:"customer_id"`
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	Payload    []byte    `json:"payload,omitempty"` // JSON details
	CreatedAt  time.Time `json:"created_at"`
}
