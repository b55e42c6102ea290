package service

import (
	"context"
	"fmt"
	"time"

	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const processedEventTTL = 72 * time.Hour

// ReconcilerServiceImpl implements ports.ReconcilerService: it is the webhook
// consumer that converges payment state with the gateway's. Verification,
// replay dedup, then dispatch by payment purpose. Dedup is a fast path only;
// confirm and fail stay idempotent without it.
type ReconcilerServiceImpl struct {
	gateway     ports.PaymentGateway
	events      ports.ProcessedEventStore
	paymentRepo ports.PaymentRepository
	unlocks     ports.UnlockService
	log         zerolog.Logger
}

// NewReconcilerService creates a new ReconcilerServiceImpl.
func NewReconcilerService(
	gateway ports.PaymentGateway,
	events ports.ProcessedEventStore,
	paymentRepo ports.PaymentRepository,
	unlocks ports.UnlockService,
	log zerolog.Logger,
) *ReconcilerServiceImpl {
	return &ReconcilerServiceImpl{
		gateway:     gateway,
		events:      events,
		paymentRepo: paymentRepo,
		unlocks:     unlocks,
		log:         log,
	}
}

// HandleEvent processes one raw webhook delivery. A nil return acknowledges
// the delivery to the gateway; an error makes the gateway redeliver.
func (s *ReconcilerServiceImpl) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}

	if event.Kind == ports.EventKindIgnored {
		s.log.Debug().Str("event_type", event.Type).Msg("ignoring gateway event")
		return nil
	}

	fresh, err := s.events.CheckAndSet(ctx, event.ID, processedEventTTL)
	if err != nil {
		// Redis down: fall through, confirm/fail are idempotent anyway.
		s.log.Warn().Err(err).Str("event_id", event.ID).Msg("event dedup unavailable, processing anyway")
	} else if !fresh {
		s.log.Info().Str("event_id", event.ID).Msg("duplicate gateway event, already processed")
		return nil
	}

	payment, err := s.paymentRepo.GetByGatewayRef(ctx, event.IntentID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load payment by gateway ref: %w", err))
	}
	if payment == nil {
		// An intent this service never opened (or a ref lost to a crash
		// between create and mark-processing). Ack and log; redelivery
		// would not help.
		s.log.Error().
			Str("event_id", event.ID).
			Str("intent_id", event.IntentID).
			Msg("gateway event for unknown payment")
		return nil
	}

	switch event.Kind {
	case ports.EventKindSucceeded:
		if _, err := s.unlocks.ConfirmPayment(ctx, payment.CustomerID, payment.ID, event.IntentID); err != nil {
			return err
		}
	case ports.EventKindFailed:
		if err := s.unlocks.FailPayment(ctx, payment.ID, event.FailureReason); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("event_id", event.ID).
		Str("payment_id", payment.ID.String()).
		Str("event_type", event.Type).
		Msg("gateway event reconciled")
	return nil
}
