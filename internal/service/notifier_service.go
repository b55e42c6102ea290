package service

import (
	"context"
	"encoding/json"
	"time"

	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ledgerNotifier implements ports.Notifier. Every notification is logged and
// appended to ledger_events; actual delivery (push, SMS) is owned by the
// notification platform consuming that table.
type ledgerNotifier struct {
	events ports.LedgerEventRepository
	log    zerolog.Logger
}

// NewNotifier creates the ledger-backed notification sink.
// If events is nil, notifications are only written to the logger.
func NewNotifier(events ports.LedgerEventRepository, log zerolog.Logger) ports.Notifier {
	return &ledgerNotifier{events: events, log: log}
}

func (n *ledgerNotifier) UnlockGranted(ctx context.Context, grant *domain.CvUnlockGrant) error {
	n.log.Info().
		Str("grant_id", grant.ID.String()).
		Str("customer_id", grant.CustomerID.String()).
		Str("profile_id", grant.ProfileID.String()).
		Msg("cv unlock granted")

	return n.append(ctx, domain.EventUnlockGranted, grant.CustomerID, "cv_unlock_grant", grant.ID, grant)
}

func (n *ledgerNotifier) PaymentFailed(ctx context.Context, p *domain.Payment) error {
	event := n.log.Info().
		Str("payment_id", p.ID.String()).
		Str("customer_id", p.CustomerID.String())
	if p.FailureReason != nil {
		event = event.Str("reason", *p.FailureReason)
	}
	event.Msg("payment failed")

	return n.append(ctx, domain.EventPaymentFailed, p.CustomerID, "payment", p.ID, p)
}

func (n *ledgerNotifier) WalletToppedUp(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) error {
	n.log.Info().
		Str("customer_id", customerID.String()).
		Str("amount", amount.String()).
		Msg("wallet topped up")

	payload := map[string]string{"amount": amount.String()}
	return n.append(ctx, domain.EventWalletToppedUp, customerID, "wallet", customerID, payload)
}

func (n *ledgerNotifier) append(ctx context.Context, eventType string, customerID uuid.UUID, entityType string, entityID uuid.UUID, payload any) error {
	if n.events == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		n.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to encode ledger event payload")
		raw = []byte("{}")
	}

	ev := &domain.LedgerEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		CustomerID: customerID,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    raw,
		CreatedAt:  time.Now().UTC(),
	}
	if err := n.events.Create(ctx, ev); err != nil {
		n.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to persist ledger event")
		return err
	}
	return nil
}
