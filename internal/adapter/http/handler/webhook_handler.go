package handler

import (
	"io"
	"net/http"

	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"
	"unlock-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// Stripe caps event payloads well below this; anything bigger is not ours.
const maxWebhookBody = 256 << 10

// WebhookHandler receives gateway webhook deliveries.
type WebhookHandler struct {
	reconciler ports.ReconcilerService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler ports.ReconcilerService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleGatewayEvent handles POST /api/v1/webhooks/gateway. Signature
// verification happens inside the reconciler against the raw body; there is
// no JSON binding here.
func (h *WebhookHandler) HandleGatewayEvent(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), payload, signature); err != nil {
		response.Error(c, err)
		return
	}

	// Bare 200: the gateway only looks at the status code.
	c.Status(http.StatusOK)
}
