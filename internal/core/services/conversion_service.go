package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// conversionService converts amounts through the rate resolver. It keeps no state
// between calls.
type conversionService struct {
	BaseService
	resolver   portssvc.RateResolverSvc
	currencies domain.CurrencySet
}

// NewConversionService creates a conversion calculator over resolver.
func NewConversionService(resolver portssvc.RateResolverSvc, currencies domain.CurrencySet) portssvc.ConversionSvc {
	return &conversionService{
		resolver:   resolver,
		currencies: currencies,
	}
}

var _ portssvc.ConversionSvc = (*conversionService)(nil)

// ToBase converts amount in currency to the base currency. Base amounts are
// returned unchanged without consulting the resolver.
func (s *conversionService) ToBase(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (decimal.Decimal, error) {
	if s.currencies.IsBase(currency) {
		return amount, nil
	}
	rate, err := s.rate(ctx, date, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// FromBase converts a base currency amount into currency.
func (s *conversionService) FromBase(ctx context.Context, amountBase decimal.Decimal, currency domain.CurrencyCode, date time.Time) (decimal.Decimal, error) {
	if s.currencies.IsBase(currency) {
		return amountBase, nil
	}
	rate, err := s.rate(ctx, date, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amountBase.Div(rate), nil
}

// Breakdown expresses amount in the base currency and every supported foreign
// currency. Rates are resolved concurrently, one goroutine per currency.
func (s *conversionService) Breakdown(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (*domain.ConversionResult, error) {
	if !s.currencies.Supports(currency) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported currency %q", currency))
	}
	day := domain.NormalizeDate(date)
	foreign := s.currencies.Foreign
	resolved := make([]domain.ResolvedRate, len(foreign))

	g, gctx := errgroup.WithContext(ctx)
	for i, code := range foreign {
		g.Go(func() error {
			rate, err := s.resolver.ResolveWithTier(gctx, day, code)
			if err != nil {
				return err
			}
			if err := ensurePositive(rate.Rate, code, day); err != nil {
				return err
			}
			resolved[i] = rate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.LogError(ctx, err, "Failed to resolve rates for breakdown",
			slog.String("currency", currency.String()),
			slog.String("date", day.Format(domain.DateLayout)))
		return nil, err
	}

	rates := lo.SliceToMap(lo.Zip2(foreign, resolved), func(t lo.Tuple2[domain.CurrencyCode, domain.ResolvedRate]) (domain.CurrencyCode, domain.ResolvedRate) {
		return t.A, t.B
	})

	sourceRate := decimal.NewFromInt(1)
	if !s.currencies.IsBase(currency) {
		sourceRate = rates[currency].Rate
	}
	baseAmount := domain.RoundMoney(amount.Mul(sourceRate))

	amounts := lo.MapValues(rates, func(rate domain.ResolvedRate, _ domain.CurrencyCode) decimal.Decimal {
		return domain.RoundMoney(baseAmount.Div(rate.Rate))
	})

	return &domain.ConversionResult{
		Date:           day,
		SourceAmount:   amount,
		SourceCurrency: currency,
		BaseCurrency:   s.currencies.Base,
		BaseAmount:     baseAmount,
		Amounts:        amounts,
		Rates:          rates,
	}, nil
}

func (s *conversionService) rate(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error) {
	rate, err := s.resolver.Resolve(ctx, date, currency)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ensurePositive(rate, currency, date); err != nil {
		s.LogError(ctx, err, "Resolver returned a non-positive rate", slog.String("currency", currency.String()))
		return decimal.Zero, err
	}
	return rate, nil
}

func ensurePositive(rate decimal.Decimal, currency domain.CurrencyCode, date time.Time) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: rate %s for %s on %s is not positive", apperrors.ErrDataIntegrity, rate, currency, date.Format(domain.DateLayout))
	}
	return nil
}
