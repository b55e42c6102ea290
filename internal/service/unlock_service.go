package service

import (
	"context"
	"fmt"
	"time"

	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// UnlockServiceImpl implements ports.UnlockService. It is the only writer of
// cv_unlock_grants and the only mutator of payment status. The funding order
// on a request is fixed: subscription free quota, then wallet balance, then a
// gateway payment intent.
type UnlockServiceImpl struct {
	grantRepo   ports.GrantRepository
	paymentRepo ports.PaymentRepository
	walletRepo  ports.WalletRepository
	walletTx    ports.WalletTransactionRepository
	pricing     ports.PricingService
	quota       ports.QuotaService
	profileDir  ports.ProfileDirectory
	gateway     ports.PaymentGateway
	notifier    ports.Notifier
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewUnlockService creates a new UnlockServiceImpl.
func NewUnlockService(
	grantRepo ports.GrantRepository,
	paymentRepo ports.PaymentRepository,
	walletRepo ports.WalletRepository,
	walletTx ports.WalletTransactionRepository,
	pricing ports.PricingService,
	quota ports.QuotaService,
	profileDir ports.ProfileDirectory,
	gateway ports.PaymentGateway,
	notifier ports.Notifier,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *UnlockServiceImpl {
	return &UnlockServiceImpl{
		grantRepo:   grantRepo,
		paymentRepo: paymentRepo,
		walletRepo:  walletRepo,
		walletTx:    walletTx,
		pricing:     pricing,
		quota:       quota,
		profileDir:  profileDir,
		gateway:     gateway,
		notifier:    notifier,
		transactor:  transactor,
		log:         log,
	}
}

// PreviewUnlock answers the price endpoint: the discounted price the customer
// would pay, and whether a free quota slot would cover it.
func (s *UnlockServiceImpl) PreviewUnlock(ctx context.Context, customerID, profileID uuid.UUID) (*ports.UnlockPreview, error) {
	grant, err := s.grantRepo.Get(ctx, customerID, profileID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check grant: %w", err))
	}

	quote, err := s.pricing.ResolvePrice(ctx, profileID)
	if err != nil {
		return nil, err
	}

	remaining, sub, err := s.quota.RemainingFreeUnlocks(ctx, customerID)
	if err != nil {
		return nil, err
	}

	amount := quote.Amount
	if sub != nil {
		amount = domain.ApplyDiscount(quote.Amount, sub.DiscountPercent)
	}

	return &ports.UnlockPreview{
		Amount:           amount,
		Currency:         quote.Currency,
		CanUseFreeUnlock: remaining > 0,
		FreeRemaining:    remaining,
		AlreadyUnlocked:  grant != nil,
	}, nil
}

// RequestUnlock grants access to a profile's CV, funding the grant from the
// first source that can cover it. When only the gateway can, no grant is
// created yet: a pending payment and its confirmation handle are returned,
// and the grant is written by ConfirmPayment.
func (s *UnlockServiceImpl) RequestUnlock(ctx context.Context, customerID, profileID uuid.UUID) (*ports.UnlockResult, error) {
	// Fast path: already granted.
	existing, err := s.grantRepo.Get(ctx, customerID, profileID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check grant: %w", err))
	}
	if existing != nil {
		return &ports.UnlockResult{Grant: existing}, nil
	}

	profile, err := s.profileDir.GetProfile(ctx, profileID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fetch profile: %w", err))
	}
	if profile == nil {
		return nil, apperror.ErrProfileNotFound()
	}

	quote, err := s.pricing.ResolvePrice(ctx, profileID)
	if err != nil {
		return nil, err
	}
	_, sub, err := s.quota.RemainingFreeUnlocks(ctx, customerID)
	if err != nil {
		return nil, err
	}
	amount := quote.Amount
	if sub != nil {
		amount = domain.ApplyDiscount(quote.Amount, sub.DiscountPercent)
	}

	result, funded, err := s.tryInternalFunding(ctx, customerID, profile, amount)
	if err != nil {
		return nil, err
	}
	if funded {
		return result, nil
	}

	// Gateway path: pending payment plus a confirmation handle. The grant is
	// written only when the charge is confirmed.
	return s.openGatewayPayment(ctx, customerID, profile, amount, quote.Currency)
}

// tryInternalFunding attempts the quota and wallet paths inside one database
// transaction. The grant insert doubles as the concurrency gate: a losing
// concurrent request sees created=false, rolls back, and returns the winner's
// grant without spending anything.
func (s *UnlockServiceImpl) tryInternalFunding(ctx context.Context, customerID uuid.UUID, profile *ports.Profile, amount decimal.Decimal) (*ports.UnlockResult, bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	grant := &domain.CvUnlockGrant{
		ID:         uuid.New(),
		CustomerID: customerID,
		ProfileID:  profile.ID,
		OfficeID:   &profile.OfficeID,
		CreatedAt:  now,
	}

	created, err := s.grantRepo.Insert(ctx, dbTx, grant)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("insert grant: %w", err))
	}
	if !created {
		// Lost the race: another request granted this pair first.
		dbTx.Rollback(ctx) //nolint:errcheck
		winner, err := s.grantRepo.Get(ctx, customerID, profile.ID)
		if err != nil || winner == nil {
			return nil, false, apperror.InternalError(fmt.Errorf("load winning grant: %w", err))
		}
		return &ports.UnlockResult{Grant: winner}, true, nil
	}

	// Funding source 1: subscription free quota.
	consumed, err := s.quota.ConsumeFreeUnlock(ctx, dbTx, customerID)
	if err != nil {
		return nil, false, err
	}
	if consumed {
		if err := dbTx.Commit(ctx); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		s.notifyGranted(ctx, grant)
		s.log.Info().
			Str("customer_id", customerID.String()).
			Str("profile_id", profile.ID.String()).
			Msg("cv unlock granted from subscription quota")
		return &ports.UnlockResult{Grant: grant}, true, nil
	}

	// Funding source 2: wallet balance.
	wallet, err := s.walletRepo.GetByCustomerIDForUpdate(ctx, dbTx, customerID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil || wallet.Balance.LessThan(amount) {
		// Neither internal source can cover it: roll everything back,
		// including the grant, and let the gateway path take over.
		return nil, false, nil
	}

	newBalance := wallet.Balance.Sub(amount)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
	}

	refType := domain.RefTypeGrant
	wtx := &domain.WalletTransaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		TxType:        domain.TxTypeCvUnlock,
		Amount:        amount.Neg(),
		BalanceAfter:  newBalance,
		ReferenceType: &refType,
		ReferenceID:   &grant.ID,
		CreatedAt:     now,
	}
	if err := s.walletTx.Create(ctx, dbTx, wtx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("record wallet debit: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	s.notifyGranted(ctx, grant)
	s.log.Info().
		Str("customer_id", customerID.String()).
		Str("profile_id", profile.ID.String()).
		Str("amount", amount.String()).
		Msg("cv unlock granted from wallet balance")
	return &ports.UnlockResult{Grant: grant}, true, nil
}

// openGatewayPayment creates a pending payment and a provider intent. On
// provider failure the payment stays pending and the request is retryable.
func (s *UnlockServiceImpl) openGatewayPayment(ctx context.Context, customerID uuid.UUID, profile *ports.Profile, amount decimal.Decimal, currency string) (*ports.UnlockResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.ErrInvalidAmount()
	}

	now := time.Now().UTC()
	profileID := profile.ID
	payment := &domain.Payment{
		ID:         uuid.New(),
		CustomerID: customerID,
		Purpose:    domain.PurposeCvUnlock,
		ProfileID:  &profileID,
		Amount:     amount,
		Currency:   currency,
		Status:     domain.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	intent, err := s.gateway.CreateIntent(ctx, ports.CreateIntentRequest{
		Amount:   amount,
		Currency: currency,
		PayerRef: customerID.String(),
		Metadata: map[string]string{
			"payment_id": payment.ID.String(),
			"purpose":    string(domain.PurposeCvUnlock),
			"profile_id": profileID.String(),
		},
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("payment_id", payment.ID.String()).
			Msg("gateway intent creation failed, payment stays pending")
		return nil, err
	}

	if err := s.paymentRepo.MarkProcessing(ctx, payment.ID, intent.IntentID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark processing: %w", err))
	}
	payment.Status = domain.PaymentStatusProcessing
	payment.GatewayRef = &intent.IntentID

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("intent_id", intent.IntentID).
		Str("amount", amount.String()).
		Msg("gateway payment opened for cv unlock")

	return &ports.UnlockResult{Payment: payment, Intent: intent}, nil
}

// ConfirmPayment settles a gateway payment: a cv_unlock payment produces the
// grant, a wallet_topup payment credits the wallet. Confirming an already
// succeeded payment is a no-op returning the existing outcome. A payment
// owned by a different customer is reported as not found.
func (s *UnlockServiceImpl) ConfirmPayment(ctx context.Context, customerID, paymentID uuid.UUID, externalRef string) (*ports.UnlockResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.paymentRepo.GetByIDForUpdate(ctx, dbTx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil || payment.CustomerID != customerID {
		// A payment belonging to someone else reads the same as a missing
		// one; ownership must not be probeable.
		return nil, apperror.ErrNotFound("payment")
	}

	if payment.Status == domain.PaymentStatusSucceeded {
		// Duplicate confirmation: report the existing outcome.
		dbTx.Rollback(ctx) //nolint:errcheck
		return s.succeededResult(ctx, payment)
	}
	if !payment.CanTransition(domain.PaymentStatusSucceeded) {
		return nil, apperror.ErrPaymentStateConflict(string(payment.Status), string(domain.PaymentStatusSucceeded))
	}

	var ref *string
	if externalRef != "" {
		ref = &externalRef
	}

	result := &ports.UnlockResult{Payment: payment}
	switch payment.Purpose {
	case domain.PurposeCvUnlock:
		grant, err := s.settleCvUnlock(ctx, dbTx, payment)
		if err != nil {
			return nil, err
		}
		result.Grant = grant
	case domain.PurposeWalletTopup:
		if err := s.settleTopup(ctx, dbTx, payment); err != nil {
			return nil, err
		}
	}

	if err := s.paymentRepo.UpdateStatus(ctx, dbTx, payment.ID, domain.PaymentStatusSucceeded, ref, nil); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark payment succeeded: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	payment.Status = domain.PaymentStatusSucceeded
	if ref != nil {
		payment.GatewayRef = ref
	}

	if result.Grant != nil {
		s.notifyGranted(ctx, result.Grant)
	}
	if payment.Purpose == domain.PurposeWalletTopup {
		if err := s.notifier.WalletToppedUp(ctx, payment.CustomerID, payment.Amount); err != nil {
			s.log.Warn().Err(err).Msg("topup notification failed")
		}
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("purpose", string(payment.Purpose)).
		Msg("payment confirmed")
	return result, nil
}

func (s *UnlockServiceImpl) settleCvUnlock(ctx context.Context, dbTx pgx.Tx, payment *domain.Payment) (*domain.CvUnlockGrant, error) {
	if payment.ProfileID == nil {
		return nil, apperror.InternalError(fmt.Errorf("cv_unlock payment %s has no profile", payment.ID))
	}

	grant := &domain.CvUnlockGrant{
		ID:         uuid.New(),
		CustomerID: payment.CustomerID,
		ProfileID:  *payment.ProfileID,
		PaymentID:  &payment.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if profile, err := s.profileDir.GetProfile(ctx, *payment.ProfileID); err == nil && profile != nil {
		grant.OfficeID = &profile.OfficeID
	}

	created, err := s.grantRepo.Insert(ctx, dbTx, grant)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert grant: %w", err))
	}
	if !created {
		// The pair was granted through another path while this charge was in
		// flight. The grant stands; the payment still settles.
		existing, err := s.grantRepo.Get(ctx, payment.CustomerID, *payment.ProfileID)
		if err != nil || existing == nil {
			return nil, apperror.InternalError(fmt.Errorf("load existing grant: %w", err))
		}
		return existing, nil
	}
	return grant, nil
}

func (s *UnlockServiceImpl) settleTopup(ctx context.Context, dbTx pgx.Tx, payment *domain.Payment) error {
	now := time.Now().UTC()
	wallet, err := s.walletRepo.GetByCustomerIDForUpdate(ctx, dbTx, payment.CustomerID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		wallet = &domain.Wallet{
			ID:         uuid.New(),
			CustomerID: payment.CustomerID,
			Balance:    decimal.Zero,
			Currency:   payment.Currency,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.walletRepo.CreateTx(ctx, dbTx, wallet); err != nil {
			return apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
	}

	newBalance := wallet.Balance.Add(payment.Amount)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}

	refType := domain.RefTypePayment
	wtx := &domain.WalletTransaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		TxType:        domain.TxTypeTopup,
		Amount:        payment.Amount,
		BalanceAfter:  newBalance,
		ReferenceType: &refType,
		ReferenceID:   &payment.ID,
		CreatedAt:     now,
	}
	if err := s.walletTx.Create(ctx, dbTx, wtx); err != nil {
		return apperror.InternalError(fmt.Errorf("record wallet credit: %w", err))
	}
	return nil
}

// succeededResult rebuilds the outcome of an already-settled payment.
func (s *UnlockServiceImpl) succeededResult(ctx context.Context, payment *domain.Payment) (*ports.UnlockResult, error) {
	result := &ports.UnlockResult{Payment: payment}
	if payment.Purpose == domain.PurposeCvUnlock && payment.ProfileID != nil {
		grant, err := s.grantRepo.Get(ctx, payment.CustomerID, *payment.ProfileID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load grant: %w", err))
		}
		result.Grant = grant
	}
	return result, nil
}

// FailPayment records a gateway failure. Terminal payments are left alone.
func (s *UnlockServiceImpl) FailPayment(ctx context.Context, paymentID uuid.UUID, reason string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.paymentRepo.GetByIDForUpdate(ctx, dbTx, paymentID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return apperror.ErrNotFound("payment")
	}
	if payment.IsTerminal() {
		return nil
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.paymentRepo.UpdateStatus(ctx, dbTx, payment.ID, domain.PaymentStatusFailed, nil, reasonPtr); err != nil {
		return apperror.InternalError(fmt.Errorf("mark payment failed: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = reasonPtr
	if err := s.notifier.PaymentFailed(ctx, payment); err != nil {
		s.log.Warn().Err(err).Msg("payment failure notification failed")
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("reason", reason).
		Msg("payment marked failed")
	return nil
}

func (s *UnlockServiceImpl) notifyGranted(ctx context.Context, grant *domain.CvUnlockGrant) {
	if err := s.notifier.UnlockGranted(ctx, grant); err != nil {
		s.log.Warn().Err(err).
			Str("grant_id", grant.ID.String()).
			Msg("unlock notification failed")
	}
}
