package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unlock-ledger/internal/adapter/http/middleware"
	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/internal/core/ports/mocks"
	"unlock-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newAuthedContext builds a test context with the customer id already set,
// as the identity middleware would.
func newAuthedContext(t *testing.T, customerID uuid.UUID, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxCustomerID, customerID)
	return c, w
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Unlock Handler Tests ---

func TestPreviewPrice_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnlock := mocks.NewMockUnlockService(ctrl)
	h := NewUnlockHandler(mockUnlock)

	customerID := uuid.New()
	profileID := uuid.New()
	mockUnlock.EXPECT().PreviewUnlock(gomock.Any(), customerID, profileID).Return(&ports.UnlockPreview{
		Amount:           decimal.NewFromInt(59),
		Currency:         "AED",
		CanUseFreeUnlock: false,
		FreeRemaining:    0,
	}, nil)

	c, w := newAuthedContext(t, customerID, http.MethodGet, "/api/v1/profiles/"+profileID.String()+"/price", nil)
	c.Params = gin.Params{{Key: "profileId", Value: profileID.String()}}

	h.PreviewPrice(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataField(t, w)
	assert.Equal(t, "59", data["amount"])
	assert.Equal(t, "AED", data["currency"])
	assert.Equal(t, false, data["already_unlocked"])
}

func TestPreviewPrice_BadProfileID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewUnlockHandler(mocks.NewMockUnlockService(ctrl))

	c, w := newAuthedContext(t, uuid.New(), http.MethodGet, "/api/v1/profiles/nope/price", nil)
	c.Params = gin.Params{{Key: "profileId", Value: "nope"}}

	h.PreviewPrice(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestUnlock_Granted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnlock := mocks.NewMockUnlockService(ctrl)
	h := NewUnlockHandler(mockUnlock)

	customerID := uuid.New()
	profileID := uuid.New()
	grant := &domain.CvUnlockGrant{
		ID:         uuid.New(),
		CustomerID: customerID,
		ProfileID:  profileID,
		CreatedAt:  time.Now().UTC(),
	}
	mockUnlock.EXPECT().RequestUnlock(gomock.Any(), customerID, profileID).
		Return(&ports.UnlockResult{Grant: grant}, nil)

	body, _ := json.Marshal(map[string]string{"profile_id": profileID.String()})
	c, w := newAuthedContext(t, customerID, http.MethodPost, "/api/v1/unlocks", body)

	h.RequestUnlock(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataField(t, w)
	assert.Equal(t, true, data["granted"])
	grantData := data["grant"].(map[string]interface{})
	assert.Equal(t, grant.ID.String(), grantData["id"])
}

func TestRequestUnlock_PaymentRequired(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnlock := mocks.NewMockUnlockService(ctrl)
	h := NewUnlockHandler(mockUnlock)

	customerID := uuid.New()
	profileID := uuid.New()
	payment := &domain.Payment{
		ID:         uuid.New(),
		CustomerID: customerID,
		Purpose:    domain.PurposeCvUnlock,
		Amount:     decimal.NewFromInt(99),
		Currency:   "AED",
		Status:     domain.PaymentStatusProcessing,
		ProfileID:  &profileID,
		CreatedAt:  time.Now().UTC(),
	}
	mockUnlock.EXPECT().RequestUnlock(gomock.Any(), customerID, profileID).
		Return(&ports.UnlockResult{
			Payment: payment,
			Intent:  &ports.GatewayIntent{IntentID: "pi_abc", ClientSecret: "pi_abc_secret"},
		}, nil)

	body, _ := json.Marshal(map[string]string{"profile_id": profileID.String()})
	c, w := newAuthedContext(t, customerID, http.MethodPost, "/api/v1/unlocks", body)

	h.RequestUnlock(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataField(t, w)
	assert.Equal(t, false, data["granted"])
	intentData := data["intent"].(map[string]interface{})
	assert.Equal(t, "pi_abc", intentData["intent_id"])
	assert.Equal(t, "pi_abc_secret", intentData["client_secret"])
}

func TestRequestUnlock_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewUnlockHandler(mocks.NewMockUnlockService(ctrl))

	c, w := newAuthedContext(t, uuid.New(), http.MethodPost, "/api/v1/unlocks", []byte(`{}`))

	h.RequestUnlock(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestUnlock_ProfileNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnlock := mocks.NewMockUnlockService(ctrl)
	h := NewUnlockHandler(mockUnlock)

	profileID := uuid.New()
	mockUnlock.EXPECT().RequestUnlock(gomock.Any(), gomock.Any(), profileID).
		Return(nil, apperror.ErrProfileNotFound())

	body, _ := json.Marshal(map[string]string{"profile_id": profileID.String()})
	c, w := newAuthedContext(t, uuid.New(), http.MethodPost, "/api/v1/unlocks", body)

	h.RequestUnlock(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNL_001", resp["error_code"])
}

func TestRequestUnlock_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewUnlockHandler(mocks.NewMockUnlockService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/unlocks", bytes.NewReader([]byte(`{}`)))

	h.RequestUnlock(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConfirmPayment_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnlock := mocks.NewMockUnlockService(ctrl)
	h := NewUnlockHandler(mockUnlock)

	customerID := uuid.New()
	paymentID := uuid.New()
	profileID := uuid.New()
	mockUnlock.EXPECT().ConfirmPayment(gomock.Any(), customerID, paymentID, "pi_abc").
		Return(&ports.UnlockResult{
			Grant: &domain.CvUnlockGrant{
				ID:         uuid.New(),
				CustomerID: customerID,
				ProfileID:  profileID,
				PaymentID:  &paymentID,
				CreatedAt:  time.Now().UTC(),
			},
		}, nil)

	body, _ := json.Marshal(map[string]string{"external_ref": "pi_abc"})
	c, w := newAuthedContext(t, customerID, http.MethodPost,
		fmt.Sprintf("/api/v1/payments/%s/confirm", paymentID), body)
	c.Params = gin.Params{{Key: "paymentId", Value: paymentID.String()}}

	h.ConfirmPayment(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataField(t, w)
	assert.Equal(t, true, data["granted"])
}

func TestConfirmPayment_StateConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnlock := mocks.NewMockUnlockService(ctrl)
	h := NewUnlockHandler(mockUnlock)

	customerID := uuid.New()
	paymentID := uuid.New()
	mockUnlock.EXPECT().ConfirmPayment(gomock.Any(), customerID, paymentID, "pi_abc").
		Return(nil, apperror.ErrPaymentStateConflict("failed", "succeeded"))

	body, _ := json.Marshal(map[string]string{"external_ref": "pi_abc"})
	c, w := newAuthedContext(t, customerID, http.MethodPost,
		fmt.Sprintf("/api/v1/payments/%s/confirm", paymentID), body)
	c.Params = gin.Params{{Key: "paymentId", Value: paymentID.String()}}

	h.ConfirmPayment(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// --- Wallet Handler Tests ---

func TestWalletGetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	customerID := uuid.New()
	mockWallet.EXPECT().GetBalance(gomock.Any(), customerID).
		Return(decimal.NewFromInt(150), "AED", nil)

	c, w := newAuthedContext(t, customerID, http.MethodGet, "/api/v1/wallets/balance", nil)

	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataField(t, w)
	assert.Equal(t, "150", data["balance"])
	assert.Equal(t, "AED", data["currency"])
}

func TestWalletTopup_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	customerID := uuid.New()
	payment := &domain.Payment{
		ID:         uuid.New(),
		CustomerID: customerID,
		Purpose:    domain.PurposeWalletTopup,
		Amount:     decimal.NewFromInt(200),
		Currency:   "AED",
		Status:     domain.PaymentStatusProcessing,
		CreatedAt:  time.Now().UTC(),
	}
	mockWallet.EXPECT().RequestTopup(gomock.Any(), customerID, gomock.Any()).
		DoAndReturn(func(_ interface{}, _ uuid.UUID, amount decimal.Decimal) (*domain.Payment, *ports.GatewayIntent, error) {
			assert.True(t, decimal.NewFromInt(200).Equal(amount))
			return payment, &ports.GatewayIntent{IntentID: "pi_topup", ClientSecret: "pi_topup_secret"}, nil
		})

	body, _ := json.Marshal(map[string]string{"amount": "200"})
	c, w := newAuthedContext(t, customerID, http.MethodPost, "/api/v1/wallets/topup", body)

	h.Topup(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataField(t, w)
	paymentData := data["payment"].(map[string]interface{})
	assert.Equal(t, "wallet_topup", paymentData["purpose"])
	intentData := data["intent"].(map[string]interface{})
	assert.Equal(t, "pi_topup", intentData["intent_id"])
}

func TestWalletTopup_BadAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletService(ctrl))

	body, _ := json.Marshal(map[string]string{"amount": "not-a-number"})
	c, w := newAuthedContext(t, uuid.New(), http.MethodPost, "/api/v1/wallets/topup", body)

	h.Topup(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PAY_002", resp["error_code"])
}

func TestWalletListTransactions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	customerID := uuid.New()
	refType := domain.RefTypeGrant
	refID := uuid.New()
	mockWallet.EXPECT().ListTransactions(gomock.Any(), customerID, 2, 10).
		Return([]domain.WalletTransaction{
			{
				ID:            uuid.New(),
				WalletID:      uuid.New(),
				TxType:        domain.TxTypeCvUnlock,
				Amount:        decimal.NewFromInt(-99),
				BalanceAfter:  decimal.NewFromInt(51),
				ReferenceType: &refType,
				ReferenceID:   &refID,
				CreatedAt:     time.Now().UTC(),
			},
		}, int64(11), nil)

	c, w := newAuthedContext(t, customerID, http.MethodGet, "/api/v1/wallets/transactions?page=2&page_size=10", nil)

	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataField(t, w)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "cv_unlock", item["tx_type"])
	assert.Equal(t, "-99", item["amount"])
}

// --- Webhook Handler Tests ---

func TestGatewayWebhook_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReconciler := mocks.NewMockReconcilerService(ctrl)
	h := NewWebhookHandler(mockReconciler)

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	mockReconciler.EXPECT().HandleEvent(gomock.Any(), payload, "t=1,v1=sig").Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(payload))
	c.Request.Header.Set("Stripe-Signature", "t=1,v1=sig")

	h.HandleGatewayEvent(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGatewayWebhook_MissingSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWebhookHandler(mocks.NewMockReconcilerService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader([]byte(`{}`)))

	h.HandleGatewayEvent(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatewayWebhook_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReconciler := mocks.NewMockReconcilerService(ctrl)
	h := NewWebhookHandler(mockReconciler)

	mockReconciler.EXPECT().HandleEvent(gomock.Any(), gomock.Any(), "bad").
		Return(apperror.ErrInvalidSignature())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader([]byte(`{}`)))
	c.Request.Header.Set("Stripe-Signature", "bad")

	h.HandleGatewayEvent(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}
