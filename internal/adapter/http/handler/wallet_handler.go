package handler

import (
	"strconv"

	"unlock-ledger/internal/adapter/http/dto"
	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"
	"unlock-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /api/v1/wallets/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	customerID, ok := customerFromContext(c)
	if !ok {
		return
	}

	balance, currency, err := h.walletSvc.GetBalance(c.Request.Context(), customerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		Balance:  balance.String(),
		Currency: currency,
	})
}

// Topup handles POST /api/v1/wallets/topup.
func (h *WalletHandler) Topup(c *gin.Context) {
	customerID, ok := customerFromContext(c)
	if !ok {
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	payment, intent, err := h.walletSvc.RequestTopup(c.Request.Context(), customerID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	pr := toPaymentResponse(payment)
	response.Created(c, dto.UnlockResponse{
		Payment: &pr,
		Intent: &dto.IntentResponse{
			IntentID:     intent.IntentID,
			ClientSecret: intent.ClientSecret,
		},
	})
}

// ListTransactions handles GET /api/v1/wallets/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	customerID, ok := customerFromContext(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	txs, total, err := h.walletSvc.ListTransactions(c.Request.Context(), customerID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txs))
	for i := range txs {
		items = append(items, toTransactionResponse(&txs[i]))
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// toPaymentResponse converts a domain payment to its DTO.
func toPaymentResponse(p *domain.Payment) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		ID:            p.ID.String(),
		Purpose:       string(p.Purpose),
		Amount:        p.Amount.String(),
		Currency:      p.Currency,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if p.ProfileID != nil {
		s := p.ProfileID.String()
		resp.ProfileID = &s
	}
	return resp
}

// toTransactionResponse converts a wallet ledger entry to its DTO.
func toTransactionResponse(tx *domain.WalletTransaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:            tx.ID.String(),
		TxType:        string(tx.TxType),
		Amount:        tx.Amount.String(),
		BalanceAfter:  tx.BalanceAfter.String(),
		ReferenceType: tx.ReferenceType,
		CreatedAt:     tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if tx.ReferenceID != nil {
		s := tx.ReferenceID.String()
		resp.ReferenceID = &s
	}
	return resp
}
