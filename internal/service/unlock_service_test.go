package service

import (
	"context"
	"testing"
	"time"

	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/internal/core/ports/mocks"
	"unlock-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type unlockTestDeps struct {
	svc         *UnlockServiceImpl
	grantRepo   *mocks.MockGrantRepository
	paymentRepo *mocks.MockPaymentRepository
	walletRepo  *mocks.MockWalletRepository
	walletTx    *mocks.MockWalletTransactionRepository
	pricing     *mocks.MockPricingService
	quota       *mocks.MockQuotaService
	profileDir  *mocks.MockProfileDirectory
	gateway     *mocks.MockPaymentGateway
	notifier    *mocks.MockNotifier
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupUnlockService(t *testing.T) *unlockTestDeps {
	ctrl := gomock.NewController(t)
	d := &unlockTestDeps{
		grantRepo:   mocks.NewMockGrantRepository(ctrl),
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		walletTx:    mocks.NewMockWalletTransactionRepository(ctrl),
		pricing:     mocks.NewMockPricingService(ctrl),
		quota:       mocks.NewMockQuotaService(ctrl),
		profileDir:  mocks.NewMockProfileDirectory(ctrl),
		gateway:     mocks.NewMockPaymentGateway(ctrl),
		notifier:    mocks.NewMockNotifier(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewUnlockService(
		d.grantRepo, d.paymentRepo, d.walletRepo, d.walletTx,
		d.pricing, d.quota, d.profileDir, d.gateway, d.notifier,
		d.transactor, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func testProfile() *ports.Profile {
	return &ports.Profile{
		ID:          uuid.New(),
		Nationality: "Filipino",
		OfficeID:    uuid.New(),
	}
}

// ==================== PreviewUnlock Tests ====================

func TestUnlockService_PreviewUnlock_WithDiscount(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profileID := uuid.New()

	d.grantRepo.EXPECT().Get(ctx, customerID, profileID).Return(nil, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profileID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(0, &domain.Subscription{
		DiscountPercent: 40,
	}, nil)

	preview, err := d.svc.PreviewUnlock(ctx, customerID, profileID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(59).Equal(preview.Amount), "99 at 40%% off rounds to 59, got %s", preview.Amount)
	assert.Equal(t, "AED", preview.Currency)
	assert.False(t, preview.CanUseFreeUnlock)
	assert.False(t, preview.AlreadyUnlocked)
}

func TestUnlockService_PreviewUnlock_FreeQuotaAvailable(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profileID := uuid.New()

	d.grantRepo.EXPECT().Get(ctx, customerID, profileID).Return(nil, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profileID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(2, &domain.Subscription{
		DiscountPercent: 0, CvUnlockAllowance: 3, CvUnlocksUsed: 1,
	}, nil)

	preview, err := d.svc.PreviewUnlock(ctx, customerID, profileID)
	require.NoError(t, err)
	assert.True(t, preview.CanUseFreeUnlock)
	assert.Equal(t, 2, preview.FreeRemaining)
}

func TestUnlockService_PreviewUnlock_AlreadyUnlocked(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profileID := uuid.New()

	d.grantRepo.EXPECT().Get(ctx, customerID, profileID).Return(&domain.CvUnlockGrant{
		ID: uuid.New(), CustomerID: customerID, ProfileID: profileID,
	}, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profileID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(0, nil, nil)

	preview, err := d.svc.PreviewUnlock(ctx, customerID, profileID)
	require.NoError(t, err)
	assert.True(t, preview.AlreadyUnlocked)
}

// ==================== RequestUnlock Tests ====================

func TestUnlockService_RequestUnlock_AlreadyGranted(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profileID := uuid.New()
	existing := &domain.CvUnlockGrant{ID: uuid.New(), CustomerID: customerID, ProfileID: profileID}

	d.grantRepo.EXPECT().Get(ctx, customerID, profileID).Return(existing, nil)

	result, err := d.svc.RequestUnlock(ctx, customerID, profileID)
	require.NoError(t, err)
	assert.Equal(t, existing, result.Grant)
	assert.Nil(t, result.Payment)
}

func TestUnlockService_RequestUnlock_ProfileNotFound(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profileID := uuid.New()

	d.grantRepo.EXPECT().Get(ctx, customerID, profileID).Return(nil, nil)
	d.profileDir.EXPECT().GetProfile(ctx, profileID).Return(nil, nil)

	result, err := d.svc.RequestUnlock(ctx, customerID, profileID)
	assert.Nil(t, result)
	assertAppError(t, err, "UNL_001")
}

func TestUnlockService_RequestUnlock_FreeQuota(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profile := testProfile()
	tx := &mockTx{}

	d.grantRepo.EXPECT().Get(ctx, customerID, profile.ID).Return(nil, nil)
	d.profileDir.EXPECT().GetProfile(ctx, profile.ID).Return(profile, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profile.ID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(1, &domain.Subscription{DiscountPercent: 40}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.grantRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(true, nil)
	d.quota.EXPECT().ConsumeFreeUnlock(ctx, tx, customerID).Return(true, nil)
	d.notifier.EXPECT().UnlockGranted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.RequestUnlock(ctx, customerID, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Grant)
	assert.Equal(t, customerID, result.Grant.CustomerID)
	assert.Equal(t, profile.ID, result.Grant.ProfileID)
	assert.Nil(t, result.Grant.PaymentID, "quota-funded grant carries no payment")
	assert.Nil(t, result.Payment)
}

func TestUnlockService_RequestUnlock_WalletDebit(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profile := testProfile()
	walletID := uuid.New()
	tx := &mockTx{}

	d.grantRepo.EXPECT().Get(ctx, customerID, profile.ID).Return(nil, nil)
	d.profileDir.EXPECT().GetProfile(ctx, profile.ID).Return(profile, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profile.ID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(0, nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.grantRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(true, nil)
	d.quota.EXPECT().ConsumeFreeUnlock(ctx, tx, customerID).Return(false, nil)
	d.walletRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, customerID).Return(&domain.Wallet{
		ID: walletID, CustomerID: customerID, Balance: decimal.NewFromInt(150), Currency: "AED",
	}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decimal.NewFromInt(51)).Return(nil)
	d.walletTx.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, wtx *domain.WalletTransaction) error {
			assert.Equal(t, domain.TxTypeCvUnlock, wtx.TxType)
			assert.True(t, decimal.NewFromInt(-99).Equal(wtx.Amount))
			assert.True(t, decimal.NewFromInt(51).Equal(wtx.BalanceAfter))
			return nil
		})
	d.notifier.EXPECT().UnlockGranted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.RequestUnlock(ctx, customerID, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Grant)
	assert.Nil(t, result.Payment)
}

func TestUnlockService_RequestUnlock_FallsThroughToGateway(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profile := testProfile()
	tx := &mockTx{}

	d.grantRepo.EXPECT().Get(ctx, customerID, profile.ID).Return(nil, nil)
	d.profileDir.EXPECT().GetProfile(ctx, profile.ID).Return(profile, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profile.ID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(0, &domain.Subscription{DiscountPercent: 40}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.grantRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(true, nil)
	d.quota.EXPECT().ConsumeFreeUnlock(ctx, tx, customerID).Return(false, nil)
	// Balance below the discounted price of 59
	d.walletRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, customerID).Return(&domain.Wallet{
		ID: uuid.New(), CustomerID: customerID, Balance: decimal.NewFromInt(10), Currency: "AED",
	}, nil)
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p *domain.Payment) error {
			assert.Equal(t, domain.PurposeCvUnlock, p.Purpose)
			assert.True(t, decimal.NewFromInt(59).Equal(p.Amount))
			assert.Equal(t, domain.PaymentStatusPending, p.Status)
			return nil
		})
	d.gateway.EXPECT().CreateIntent(ctx, gomock.Any()).Return(&ports.GatewayIntent{
		IntentID: "pi_abc", ClientSecret: "pi_abc_secret",
	}, nil)
	d.paymentRepo.EXPECT().MarkProcessing(ctx, gomock.Any(), "pi_abc").Return(nil)

	result, err := d.svc.RequestUnlock(ctx, customerID, profile.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Grant, "no grant until the charge is confirmed")
	require.NotNil(t, result.Payment)
	assert.Equal(t, domain.PaymentStatusProcessing, result.Payment.Status)
	require.NotNil(t, result.Intent)
	assert.Equal(t, "pi_abc", result.Intent.IntentID)
}

func TestUnlockService_RequestUnlock_LostGrantRace(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profile := testProfile()
	tx := &mockTx{}
	winner := &domain.CvUnlockGrant{ID: uuid.New(), CustomerID: customerID, ProfileID: profile.ID}

	d.grantRepo.EXPECT().Get(ctx, customerID, profile.ID).Return(nil, nil)
	d.profileDir.EXPECT().GetProfile(ctx, profile.ID).Return(profile, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profile.ID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(0, nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.grantRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(false, nil)
	d.grantRepo.EXPECT().Get(ctx, customerID, profile.ID).Return(winner, nil)

	result, err := d.svc.RequestUnlock(ctx, customerID, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, result.Grant)
}

func TestUnlockService_RequestUnlock_GatewayDown(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	profile := testProfile()
	tx := &mockTx{}

	d.grantRepo.EXPECT().Get(ctx, customerID, profile.ID).Return(nil, nil)
	d.profileDir.EXPECT().GetProfile(ctx, profile.ID).Return(profile, nil)
	d.pricing.EXPECT().ResolvePrice(ctx, profile.ID).Return(&domain.Quote{
		Amount: decimal.NewFromInt(99), Currency: "AED",
	}, nil)
	d.quota.EXPECT().RemainingFreeUnlocks(ctx, customerID).Return(0, nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.grantRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(true, nil)
	d.quota.EXPECT().ConsumeFreeUnlock(ctx, tx, customerID).Return(false, nil)
	d.walletRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, customerID).Return(nil, nil)
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.gateway.EXPECT().CreateIntent(ctx, gomock.Any()).Return(nil, apperror.ErrGatewayUnavailable(assert.AnError))

	result, err := d.svc.RequestUnlock(ctx, customerID, profile.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "GTW_001")
}

// ==================== ConfirmPayment Tests ====================

func pendingCvUnlockPayment(customerID uuid.UUID) *domain.Payment {
	profileID := uuid.New()
	ref := "pi_abc"
	return &domain.Payment{
		ID:         uuid.New(),
		CustomerID: customerID,
		Purpose:    domain.PurposeCvUnlock,
		ProfileID:  &profileID,
		Amount:     decimal.NewFromInt(59),
		Currency:   "AED",
		Status:     domain.PaymentStatusProcessing,
		GatewayRef: &ref,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestUnlockService_ConfirmPayment_CvUnlock(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	payment := pendingCvUnlockPayment(customerID)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)
	d.profileDir.EXPECT().GetProfile(ctx, *payment.ProfileID).Return(&ports.Profile{
		ID: *payment.ProfileID, OfficeID: uuid.New(),
	}, nil)
	d.grantRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(true, nil)
	d.paymentRepo.EXPECT().UpdateStatus(ctx, tx, payment.ID, domain.PaymentStatusSucceeded, gomock.Any(), nil).Return(nil)
	d.notifier.EXPECT().UnlockGranted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.ConfirmPayment(ctx, customerID, payment.ID, "pi_abc")
	require.NoError(t, err)
	require.NotNil(t, result.Grant)
	assert.Equal(t, &payment.ID, result.Grant.PaymentID)
	assert.Equal(t, domain.PaymentStatusSucceeded, result.Payment.Status)
}

func TestUnlockService_ConfirmPayment_WalletTopup(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	walletID := uuid.New()
	tx := &mockTx{}

	payment := pendingCvUnlockPayment(customerID)
	payment.Purpose = domain.PurposeWalletTopup
	payment.ProfileID = nil
	payment.Amount = decimal.NewFromInt(200)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)
	d.walletRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, customerID).Return(&domain.Wallet{
		ID: walletID, CustomerID: customerID, Balance: decimal.NewFromInt(50), Currency: "AED",
	}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decimal.NewFromInt(250)).Return(nil)
	d.walletTx.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, wtx *domain.WalletTransaction) error {
			assert.Equal(t, domain.TxTypeTopup, wtx.TxType)
			assert.True(t, decimal.NewFromInt(200).Equal(wtx.Amount))
			return nil
		})
	d.paymentRepo.EXPECT().UpdateStatus(ctx, tx, payment.ID, domain.PaymentStatusSucceeded, gomock.Any(), nil).Return(nil)
	d.notifier.EXPECT().WalletToppedUp(ctx, customerID, payment.Amount).Return(nil)

	result, err := d.svc.ConfirmPayment(ctx, customerID, payment.ID, "pi_abc")
	require.NoError(t, err)
	assert.Nil(t, result.Grant)
	assert.Equal(t, domain.PaymentStatusSucceeded, result.Payment.Status)
}

func TestUnlockService_ConfirmPayment_TopupCreatesWallet(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	tx := &mockTx{}

	payment := pendingCvUnlockPayment(customerID)
	payment.Purpose = domain.PurposeWalletTopup
	payment.ProfileID = nil
	payment.Amount = decimal.NewFromInt(100)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)
	d.walletRepo.EXPECT().GetByCustomerIDForUpdate(ctx, tx, customerID).Return(nil, nil)
	d.walletRepo.EXPECT().CreateTx(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), decimal.NewFromInt(100)).Return(nil)
	d.walletTx.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.paymentRepo.EXPECT().UpdateStatus(ctx, tx, payment.ID, domain.PaymentStatusSucceeded, gomock.Any(), nil).Return(nil)
	d.notifier.EXPECT().WalletToppedUp(ctx, customerID, payment.Amount).Return(nil)

	_, err := d.svc.ConfirmPayment(ctx, customerID, payment.ID, "pi_abc")
	require.NoError(t, err)
}

func TestUnlockService_ConfirmPayment_AlreadySucceeded(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	payment := pendingCvUnlockPayment(customerID)
	payment.Status = domain.PaymentStatusSucceeded
	grant := &domain.CvUnlockGrant{ID: uuid.New(), CustomerID: customerID, ProfileID: *payment.ProfileID}
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)
	d.grantRepo.EXPECT().Get(ctx, customerID, *payment.ProfileID).Return(grant, nil)

	result, err := d.svc.ConfirmPayment(ctx, customerID, payment.ID, "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, grant, result.Grant)
}

func TestUnlockService_ConfirmPayment_FromFailedState(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerID := uuid.New()
	payment := pendingCvUnlockPayment(customerID)
	payment.Status = domain.PaymentStatusFailed
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)

	result, err := d.svc.ConfirmPayment(ctx, customerID, payment.ID, "pi_abc")
	assert.Nil(t, result)
	assertAppError(t, err, "PAY_005")
}

func TestUnlockService_ConfirmPayment_NotFound(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, id).Return(nil, nil)

	result, err := d.svc.ConfirmPayment(ctx, uuid.New(), id, "pi_abc")
	assert.Nil(t, result)
	assertAppError(t, err, "PAY_004")
}

func TestUnlockService_ConfirmPayment_OtherCustomersPayment(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	owner := uuid.New()
	payment := pendingCvUnlockPayment(owner)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)

	// A different customer confirming someone else's payment gets not-found;
	// the payment is left untouched.
	result, err := d.svc.ConfirmPayment(ctx, uuid.New(), payment.ID, "pi_abc")
	assert.Nil(t, result)
	assertAppError(t, err, "PAY_004")
}

// ==================== FailPayment Tests ====================

func TestUnlockService_FailPayment(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payment := pendingCvUnlockPayment(uuid.New())
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)
	d.paymentRepo.EXPECT().UpdateStatus(ctx, tx, payment.ID, domain.PaymentStatusFailed, nil, gomock.Any()).Return(nil)
	d.notifier.EXPECT().PaymentFailed(ctx, gomock.Any()).Return(nil)

	err := d.svc.FailPayment(ctx, payment.ID, "card_declined")
	require.NoError(t, err)
}

func TestUnlockService_FailPayment_TerminalNoop(t *testing.T) {
	d := setupUnlockService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payment := pendingCvUnlockPayment(uuid.New())
	payment.Status = domain.PaymentStatusSucceeded
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByIDForUpdate(ctx, tx, payment.ID).Return(payment, nil)

	err := d.svc.FailPayment(ctx, payment.ID, "card_declined")
	require.NoError(t, err, "failing a terminal payment is a no-op")
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
