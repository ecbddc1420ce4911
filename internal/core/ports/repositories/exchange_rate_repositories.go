package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ExchangeRateReader defines read operations over the date-keyed rate cache.
// Implementations never return a non-positive rate; such values surface as
// apperrors.ErrDataIntegrity.
type ExchangeRateReader interface {
	// LookupExactRate is the authoritative single-call lookup for one (date, currency) pair.
	LookupExactRate(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error)

	// FindRateOnOrBefore returns the rate from the most recent record dated on or
	// before date that has a value for currency.
	FindRateOnOrBefore(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, time.Time, error)

	// FindLatestRateRecord returns the record with the greatest date.
	FindLatestRateRecord(ctx context.Context) (*domain.RateRecord, error)

	// ListRateRecords returns records with start <= date <= end, newest first.
	ListRateRecords(ctx context.Context, start, end time.Time) ([]domain.RateRecord, error)
}

// ExchangeRateWriter defines write operations over the rate cache.
type ExchangeRateWriter interface {
	// UpsertRateRecord inserts the record or updates the existing one for the same date.
	// updated_at is always refreshed; currencies left null keep their stored value.
	UpsertRateRecord(ctx context.Context, record domain.RateRecord) error
}

// ExchangeRateRepositoryFacade combines all exchange rate repository interfaces.
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}
