package services_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SscSPs/expense_tracker/internal/adapters/database/redisstore"
	"github.com/SscSPs/expense_tracker/internal/adapters/forex"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/core/services"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scenario struct {
	store    *redisstore.ExchangeRateRepository
	live     *forex.LiveRateClient
	resolver *services.RateResolver
	hits     *int32
}

func newScenario(t *testing.T, providerBody func(date string) (int, string)) scenario {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewExchangeRateRepository(client, testCurrencies.Foreign, "")

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		status, body := providerBody(r.URL.Query().Get("date"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	live, err := forex.NewLiveRateClient(forex.Options{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Timeout:    time.Second,
		Currencies: testCurrencies.Foreign,
	})
	require.NoError(t, err)

	resolver := services.NewRateResolver(store, live, services.ResolverSettings{
		Currencies:       testCurrencies,
		DefaultRates:     testDefaults,
		WriteBackTimeout: time.Second,
	})
	return scenario{store: store, live: live, resolver: resolver, hits: &hits}
}

func TestScenario_WarmOnMiss(t *testing.T) {
	sc := newScenario(t, func(date string) (int, string) {
		return http.StatusOK, fmt.Sprintf(`{"requested_date":%q,"rate_date":%q,"rates":[{"currency":"EUR","rate":"4.9731"},{"currency":"USD","rate":4.52}]}`, date, date)
	})
	ctx := context.Background()
	date := day("2026-03-04")

	first, err := sc.resolver.ResolveWithTier(ctx, date, "EUR")
	require.NoError(t, err)
	assert.Equal(t, domain.TierLive, first.Tier)
	require.NoError(t, sc.resolver.Drain(ctx))

	second, err := sc.resolver.ResolveWithTier(ctx, date, "EUR")
	require.NoError(t, err)
	assert.Equal(t, domain.TierAuthoritative, second.Tier)
	assert.True(t, first.Rate.Equal(second.Rate))

	// The whole provider answer was cached, not only the requested currency.
	usd, err := sc.resolver.ResolveWithTier(ctx, date, "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.TierAuthoritative, usd.Tier)
	assert.True(t, decimal.RequireFromString("4.52").Equal(usd.Rate))

	assert.Equal(t, int32(1), atomic.LoadInt32(sc.hits))
}

func TestScenario_WeekendCarriesForward(t *testing.T) {
	sc := newScenario(t, func(string) (int, string) {
		return http.StatusServiceUnavailable, ``
	})
	ctx := context.Background()
	friday := day("2026-01-16")
	require.NoError(t, sc.store.UpsertRateRecord(ctx, domain.RateRecord{
		Date:   friday,
		Rates:  map[domain.CurrencyCode]decimal.NullDecimal{"EUR": decimal.NewNullDecimal(decimal.RequireFromString("4.9770"))},
		Source: domain.SourceSync,
	}))

	resolved, err := sc.resolver.ResolveWithTier(ctx, day("2026-01-18"), "EUR")

	require.NoError(t, err)
	assert.Equal(t, domain.TierCache, resolved.Tier)
	assert.True(t, decimal.RequireFromString("4.9770").Equal(resolved.Rate))
	assert.Equal(t, int32(0), atomic.LoadInt32(sc.hits))
}

func TestScenario_ProviderDownFallsBackToDefault(t *testing.T) {
	sc := newScenario(t, func(string) (int, string) {
		return http.StatusBadGateway, ``
	})
	ctx := context.Background()

	resolved, err := sc.resolver.ResolveWithTier(ctx, day("2026-01-18"), "GBP")

	require.NoError(t, err)
	assert.Equal(t, domain.TierDefault, resolved.Tier)
	assert.True(t, decimal.RequireFromString("5.80").Equal(resolved.Rate))
	require.NoError(t, sc.resolver.Drain(ctx))

	_, err = sc.store.FindLatestRateRecord(ctx)
	assert.Error(t, err, "nothing is cached when the provider is down")
}

func TestScenario_BreakdownOverRedis(t *testing.T) {
	sc := newScenario(t, func(string) (int, string) {
		return http.StatusServiceUnavailable, ``
	})
	ctx := context.Background()
	date := day("2026-01-15")
	require.NoError(t, sc.store.UpsertRateRecord(ctx, domain.RateRecord{
		Date: date,
		Rates: map[domain.CurrencyCode]decimal.NullDecimal{
			"EUR": decimal.NewNullDecimal(decimal.RequireFromString("4.97")),
			"USD": decimal.NewNullDecimal(decimal.RequireFromString("4.50")),
			"GBP": decimal.NewNullDecimal(decimal.RequireFromString("5.80")),
		},
		Source: domain.SourceSync,
	}))

	calc := services.NewConversionService(sc.resolver, testCurrencies)
	result, err := calc.Breakdown(ctx, decimal.NewFromInt(100), "EUR", date)

	require.NoError(t, err)
	assert.Equal(t, "497.00", result.BaseAmount.StringFixed(2))
	assert.Equal(t, "110.44", result.Amounts["USD"].StringFixed(2))
	for _, code := range testCurrencies.Foreign {
		assert.Equal(t, domain.TierAuthoritative, result.Rates[code].Tier)
	}
}

func TestScenario_RepeatedSyncIsIdempotent(t *testing.T) {
	var calls int32
	sc := newScenario(t, func(date string) (int, string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return http.StatusOK, fmt.Sprintf(`{"requested_date":%q,"rate_date":%q,"rates":[{"currency":"EUR","rate":"5.00"},{"currency":"USD","rate":"4.60"}]}`, date, date)
		}
		return http.StatusOK, fmt.Sprintf(`{"requested_date":%q,"rate_date":%q,"rates":[{"currency":"EUR","rate":"5.01"}]}`, date, date)
	})
	ctx := context.Background()
	date := day("2026-04-01")
	syncSvc := services.NewRateSyncService(sc.store, sc.live, testCurrencies)

	first, err := syncSvc.Sync(ctx, &date)
	require.NoError(t, err)
	require.True(t, first.Success)
	before, err := sc.store.ListRateRecords(ctx, date, date)
	require.NoError(t, err)
	require.Len(t, before, 1)

	time.Sleep(5 * time.Millisecond)
	second, err := syncSvc.Sync(ctx, &date)
	require.NoError(t, err)
	require.True(t, second.Success)

	after, err := sc.store.ListRateRecords(ctx, date, date)
	require.NoError(t, err)
	require.Len(t, after, 1, "one record per date")

	record := after[0]
	eur, ok := record.Rate("EUR")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("5.01").Equal(eur))
	usd, ok := record.Rate("USD")
	require.True(t, ok, "a rate the provider stopped reporting is kept")
	assert.True(t, decimal.RequireFromString("4.60").Equal(usd))
	assert.Equal(t, domain.SourceSync, record.Source)
	assert.True(t, record.CreatedAt.Equal(before[0].CreatedAt))
	assert.True(t, record.UpdatedAt.After(before[0].UpdatedAt))
	assert.Equal(t, int32(2), atomic.LoadInt32(sc.hits))
}
