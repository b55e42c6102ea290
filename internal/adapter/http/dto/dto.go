package dto

// UnlockRequest is the request body for requesting a CV unlock.
type UnlockRequest struct {
	ProfileID string `json:"profile_id" binding:"required,uuid"`
}

// ConfirmPaymentRequest carries the gateway reference a client received when
// its payment settled on the client side.
type ConfirmPaymentRequest struct {
	ExternalRef string `json:"external_ref" binding:"required,max=255,safe_id"`
}

// TopupRequest is the request body for a wallet top-up.
type TopupRequest struct {
	Amount string `json:"amount" binding:"required,max=32"`
}

// GrantResponse is the response shape for a CV unlock grant.
type GrantResponse struct {
	ID        string  `json:"id"`
	ProfileID string  `json:"profile_id"`
	OfficeID  *string `json:"office_id,omitempty"`
	PaymentID *string `json:"payment_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// PaymentResponse is the response shape for a payment.
type PaymentResponse struct {
	ID            string  `json:"id"`
	Purpose       string  `json:"purpose"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	ProfileID     *string `json:"profile_id,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// IntentResponse carries the gateway handle the client needs to complete
// a card payment.
type IntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

// UnlockResponse is the outcome of an unlock request: either a grant, or a
// payment the client must complete.
type UnlockResponse struct {
	Granted bool             `json:"granted"`
	Grant   *GrantResponse   `json:"grant,omitempty"`
	Payment *PaymentResponse `json:"payment,omitempty"`
	Intent  *IntentResponse  `json:"intent,omitempty"`
}

// PricePreviewResponse is the response for the price preview endpoint.
type PricePreviewResponse struct {
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	CanUseFreeUnlock bool   `json:"can_use_free_unlock"`
	FreeRemaining    int    `json:"free_remaining"`
	AlreadyUnlocked  bool   `json:"already_unlocked"`
}

// WalletBalanceResponse is the response for the balance query.
type WalletBalanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// TransactionResponse is one wallet ledger entry.
type TransactionResponse struct {
	ID            string  `json:"id"`
	TxType        string  `json:"tx_type"`
	Amount        string  `json:"amount"`
	BalanceAfter  string  `json:"balance_after"`
	ReferenceType *string `json:"reference_type,omitempty"`
	ReferenceID   *string `json:"reference_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// TransactionListResponse wraps a paginated wallet ledger.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}
