package service

import (
	"context"
	"fmt"
	"time"

	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultWalletCurrency = "AED"

// WalletServiceImpl implements ports.WalletService. Wallets are credited only
// through confirmed gateway payments; debits happen on the unlock path.
type WalletServiceImpl struct {
	walletRepo  ports.WalletRepository
	walletTx    ports.WalletTransactionRepository
	paymentRepo ports.PaymentRepository
	gateway     ports.PaymentGateway
	log         zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	walletTx ports.WalletTransactionRepository,
	paymentRepo ports.PaymentRepository,
	gateway ports.PaymentGateway,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:  walletRepo,
		walletTx:    walletTx,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		log:         log,
	}
}

// GetBalance returns the customer's balance. A customer without a wallet gets
// a zero-balance wallet provisioned on this first read; the spend and credit
// paths provision inside their own transactions.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, string, error) {
	wallet, err := s.walletRepo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return decimal.Zero, "", apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		now := time.Now().UTC()
		wallet = &domain.Wallet{
			ID:         uuid.New(),
			CustomerID: customerID,
			Balance:    decimal.Zero,
			Currency:   defaultWalletCurrency,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.walletRepo.Create(ctx, wallet); err != nil {
			return decimal.Zero, "", apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
		s.log.Info().Str("customer_id", customerID.String()).Msg("wallet provisioned on first read")
	}
	return wallet.Balance, wallet.Currency, nil
}

// ListTransactions returns a page of the customer's wallet ledger.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, customerID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	wallet, err := s.walletRepo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, 0, nil
	}

	txs, total, err := s.walletTx.ListByWallet(ctx, wallet.ID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txs, total, nil
}

// RequestTopup opens a gateway payment that, once confirmed, credits the
// wallet. The credit itself happens in ConfirmPayment.
func (s *WalletServiceImpl) RequestTopup(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*domain.Payment, *ports.GatewayIntent, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, apperror.ErrInvalidAmount()
	}

	currency := defaultWalletCurrency
	if wallet, err := s.walletRepo.GetByCustomerID(ctx, customerID); err == nil && wallet != nil {
		currency = wallet.Currency
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:         uuid.New(),
		CustomerID: customerID,
		Purpose:    domain.PurposeWalletTopup,
		Amount:     amount,
		Currency:   currency,
		Status:     domain.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	intent, err := s.gateway.CreateIntent(ctx, ports.CreateIntentRequest{
		Amount:   amount,
		Currency: currency,
		PayerRef: customerID.String(),
		Metadata: map[string]string{
			"payment_id": payment.ID.String(),
			"purpose":    string(domain.PurposeWalletTopup),
		},
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("payment_id", payment.ID.String()).
			Msg("gateway intent creation failed, topup stays pending")
		return nil, nil, err
	}

	if err := s.paymentRepo.MarkProcessing(ctx, payment.ID, intent.IntentID); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("mark processing: %w", err))
	}
	payment.Status = domain.PaymentStatusProcessing
	payment.GatewayRef = &intent.IntentID

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("amount", amount.String()).
		Msg("wallet topup payment opened")
	return payment, intent, nil
}
