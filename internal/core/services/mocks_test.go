package services_test

import (
	"context"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Mock ExchangeRateRepository ---
type MockExchangeRateRepository struct {
	mock.Mock
}

func (m *MockExchangeRateRepository) LookupExactRate(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockExchangeRateRepository) FindRateOnOrBefore(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, time.Time, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(decimal.Decimal), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockExchangeRateRepository) FindLatestRateRecord(ctx context.Context) (*domain.RateRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateRecord), args.Error(1)
}

func (m *MockExchangeRateRepository) ListRateRecords(ctx context.Context, start, end time.Time) ([]domain.RateRecord, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RateRecord), args.Error(1)
}

func (m *MockExchangeRateRepository) UpsertRateRecord(ctx context.Context, record domain.RateRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// --- Mock LiveRateFetcher ---
type MockLiveRateFetcher struct {
	mock.Mock
}

func (m *MockLiveRateFetcher) Fetch(ctx context.Context, date time.Time) (*domain.LiveRateSet, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LiveRateSet), args.Error(1)
}

// --- Mock RateResolver ---
type MockRateResolver struct {
	mock.Mock
}

func (m *MockRateResolver) Resolve(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRateResolver) ResolveWithTier(ctx context.Context, date time.Time, currency domain.CurrencyCode) (domain.ResolvedRate, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(domain.ResolvedRate), args.Error(1)
}

// --- Fixtures ---

var testCurrencies = domain.CurrencySet{
	Base:    "RON",
	Foreign: []domain.CurrencyCode{"EUR", "USD", "GBP"},
}

var testDefaults = map[domain.CurrencyCode]decimal.Decimal{
	"EUR": decimal.RequireFromString("4.97"),
	"USD": decimal.RequireFromString("4.50"),
	"GBP": decimal.RequireFromString("5.80"),
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func liveSet(date string, rates map[domain.CurrencyCode]string) *domain.LiveRateSet {
	set := &domain.LiveRateSet{
		RequestedDate: day(date),
		ProviderDate:  day(date),
		Rates:         map[domain.CurrencyCode]decimal.NullDecimal{},
	}
	for _, code := range testCurrencies.Foreign {
		set.Rates[code] = decimal.NullDecimal{}
	}
	for code, v := range rates {
		set.Rates[code] = decimal.NewNullDecimal(dec(v))
	}
	return set
}
