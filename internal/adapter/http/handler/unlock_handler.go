package handler

import (
	"unlock-ledger/internal/adapter/http/dto"
	"unlock-ledger/internal/adapter/http/middleware"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"
	"unlock-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UnlockHandler handles CV unlock endpoints.
type UnlockHandler struct {
	unlockSvc ports.UnlockService
}

// NewUnlockHandler creates a new UnlockHandler.
func NewUnlockHandler(unlockSvc ports.UnlockService) *UnlockHandler {
	return &UnlockHandler{unlockSvc: unlockSvc}
}

// PreviewPrice handles GET /api/v1/profiles/:profileId/price.
func (h *UnlockHandler) PreviewPrice(c *gin.Context) {
	customerID, ok := customerFromContext(c)
	if !ok {
		return
	}

	profileID, err := uuid.Parse(c.Param("profileId"))
	if err != nil {
		response.Error(c, apperror.Validation("profileId must be a UUID"))
		return
	}

	preview, err := h.unlockSvc.PreviewUnlock(c.Request.Context(), customerID, profileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.PricePreviewResponse{
		Amount:           preview.Amount.String(),
		Currency:         preview.Currency,
		CanUseFreeUnlock: preview.CanUseFreeUnlock,
		FreeRemaining:    preview.FreeRemaining,
		AlreadyUnlocked:  preview.AlreadyUnlocked,
	})
}

// RequestUnlock handles POST /api/v1/unlocks. Responds 200 with the grant
// when the unlock was funded internally (or already held), 201 with the
// payment and intent when the client must complete a card payment.
func (h *UnlockHandler) RequestUnlock(c *gin.Context) {
	customerID, ok := customerFromContext(c)
	if !ok {
		return
	}

	var req dto.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		response.Error(c, apperror.Validation("profile_id must be a UUID"))
		return
	}

	result, err := h.unlockSvc.RequestUnlock(c.Request.Context(), customerID, profileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := toUnlockResponse(result)
	if resp.Granted {
		response.OK(c, resp)
		return
	}
	response.Created(c, resp)
}

// ConfirmPayment handles POST /api/v1/payments/:paymentId/confirm. Clients
// call it after completing a card payment; the gateway webhook settles the
// same payment independently, whichever arrives first wins and the other is
// a no-op.
func (h *UnlockHandler) ConfirmPayment(c *gin.Context) {
	customerID, ok := customerFromContext(c)
	if !ok {
		return
	}

	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		response.Error(c, apperror.Validation("paymentId must be a UUID"))
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.unlockSvc.ConfirmPayment(c.Request.Context(), customerID, paymentID, req.ExternalRef)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toUnlockResponse(result))
}

// customerFromContext pulls the authenticated customer id set by the
// identity middleware.
func customerFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxCustomerID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// toUnlockResponse converts a service unlock result to its DTO.
func toUnlockResponse(result *ports.UnlockResult) dto.UnlockResponse {
	resp := dto.UnlockResponse{Granted: result.Grant != nil}
	if g := result.Grant; g != nil {
		gr := dto.GrantResponse{
			ID:        g.ID.String(),
			ProfileID: g.ProfileID.String(),
			CreatedAt: g.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if g.OfficeID != nil {
			s := g.OfficeID.String()
			gr.OfficeID = &s
		}
		if g.PaymentID != nil {
			s := g.PaymentID.String()
			gr.PaymentID = &s
		}
		resp.Grant = &gr
	}
	if p := result.Payment; p != nil {
		pr := toPaymentResponse(p)
		resp.Payment = &pr
	}
	if i := result.Intent; i != nil {
		resp.Intent = &dto.IntentResponse{
			IntentID:     i.IntentID,
			ClientSecret: i.ClientSecret,
		}
	}
	return resp
}
