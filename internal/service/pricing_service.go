package service

import (
	"context"
	"fmt"

	"unlock-ledger/config"
	"unlock-ledger/internal/core/domain"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PricingServiceImpl implements ports.PricingService. Resolution order:
// nationality-specific active rule, default active rule, configured fallback.
type PricingServiceImpl struct {
	priceRepo  ports.PriceRuleRepository
	profileDir ports.ProfileDirectory
	fallback   domain.Quote
	log        zerolog.Logger
}

// NewPricingService creates a new PricingServiceImpl.
func NewPricingService(
	priceRepo ports.PriceRuleRepository,
	profileDir ports.ProfileDirectory,
	cfg config.PricingConfig,
	log zerolog.Logger,
) (*PricingServiceImpl, error) {
	amount, err := decimal.NewFromString(cfg.FallbackAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback amount %q: %w", cfg.FallbackAmount, err)
	}
	return &PricingServiceImpl{
		priceRepo:  priceRepo,
		profileDir: profileDir,
		fallback:   domain.Quote{Amount: amount, Currency: cfg.FallbackCurrency},
		log:        log,
	}, nil
}

// ResolvePrice returns the undiscounted unlock price for a profile.
func (s *PricingServiceImpl) ResolvePrice(ctx context.Context, profileID uuid.UUID) (*domain.Quote, error) {
	profile, err := s.profileDir.GetProfile(ctx, profileID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fetch profile: %w", err))
	}
	if profile == nil {
		return nil, apperror.ErrProfileNotFound()
	}

	if profile.Nationality != "" {
		rule, err := s.priceRepo.GetActiveByNationality(ctx, profile.Nationality)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("nationality price rule: %w", err))
		}
		if rule != nil {
			return &domain.Quote{Amount: rule.Amount, Currency: rule.Currency}, nil
		}
	}

	rule, err := s.priceRepo.GetActiveDefault(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("default price rule: %w", err))
	}
	if rule != nil {
		return &domain.Quote{Amount: rule.Amount, Currency: rule.Currency}, nil
	}

	s.log.Warn().
		Str("profile_id", profileID.String()).
		Msg("no active price rule, using configured fallback")

	q := s.fallback
	return &q, nil
}
