package stripegw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Gateway implements ports.PaymentGateway on Stripe payment intents.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

// New creates a Stripe-backed gateway.
func New(secretKey, webhookSecret string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

// CreateIntent opens a payment intent with the provider. The amount is
// converted to minor units (fils for AED).
func (g *Gateway) CreateIntent(ctx context.Context, req ports.CreateIntentRequest) (*ports.GatewayIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Metadata: req.Metadata,
	}
	params.Context = ctx
	if req.PayerRef != "" {
		params.AddMetadata("payer_ref", req.PayerRef)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, apperror.ErrGatewayUnavailable(err)
	}
	return &ports.GatewayIntent{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the endpoint
// secret and maps the event into the provider-agnostic form.
func (g *Gateway) VerifyWebhook(payload []byte, signature string) (*ports.GatewayEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, apperror.ErrInvalidSignature()
	}
	return mapEvent(&event)
}

func mapEvent(event *stripe.Event) (*ports.GatewayEvent, error) {
	out := &ports.GatewayEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: ports.EventKindIgnored,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		return out, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent from event %s: %w", event.ID, err)
	}
	out.IntentID = intent.ID

	switch event.Type {
	case "payment_intent.succeeded":
		out.Kind = ports.EventKindSucceeded
	case "payment_intent.payment_failed":
		out.Kind = ports.EventKindFailed
		if intent.LastPaymentError != nil {
			out.FailureReason = string(intent.LastPaymentError.Code)
		}
		if out.FailureReason == "" {
			out.FailureReason = "payment_failed"
		}
	case "payment_intent.canceled":
		out.Kind = ports.EventKindFailed
		out.FailureReason = "canceled"
	}
	return out, nil
}

// minorUnits converts a decimal major-unit amount to the provider's integer
// minor units (fils for AED).
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}
