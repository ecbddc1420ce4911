package services

import (
	"context"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ExchangeRateReaderSvc exposes the cached rate records.
type ExchangeRateReaderSvc interface {
	// GetLatestRateRecord returns the most recent cached record.
	GetLatestRateRecord(ctx context.Context) (*domain.RateRecord, error)

	// ListRateRecords returns cached records between start and end inclusive, newest first.
	ListRateRecords(ctx context.Context, start, end time.Time) ([]domain.RateRecord, error)
}

// RateResolverSvc answers "what is the rate for currency on date".
type RateResolverSvc interface {
	// Resolve returns a strictly positive rate to the base currency.
	Resolve(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error)

	// ResolveWithTier is Resolve plus the tier that produced the rate.
	ResolveWithTier(ctx context.Context, date time.Time, currency domain.CurrencyCode) (domain.ResolvedRate, error)
}

// ConversionSvc converts monetary amounts between the base and foreign currencies.
type ConversionSvc interface {
	ToBase(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (decimal.Decimal, error)
	FromBase(ctx context.Context, amountBase decimal.Decimal, currency domain.CurrencyCode, date time.Time) (decimal.Decimal, error)
	Breakdown(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (*domain.ConversionResult, error)
}

// RateSyncSvc is the administrative entry point that refreshes the cache from the provider.
type RateSyncSvc interface {
	// Sync fetches live rates for date (today when nil) and upserts them.
	Sync(ctx context.Context, date *time.Time) (*domain.SyncResult, error)
}

// ExchangeRateSvcFacade combines the rate services a handler needs.
type ExchangeRateSvcFacade interface {
	ExchangeRateReaderSvc
	RateResolverSvc
}
