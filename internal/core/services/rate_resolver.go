package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/core/ports/providers"
	portsrepo "github.com/SscSPs/expense_tracker/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/SscSPs/expense_tracker/internal/observability/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const defaultWriteBackTimeout = 10 * time.Second

// ResolverSettings holds the static inputs of the fallback chain.
type ResolverSettings struct {
	Currencies       domain.CurrencySet
	DefaultRates     map[domain.CurrencyCode]decimal.Decimal
	WriteBackTimeout time.Duration
}

// RateResolver answers rate queries through four tiers: the authoritative exact
// lookup, the on-or-before cache lookup, a live provider fetch, and the configured
// default. Every tier failure is absorbed; only configuration errors reach the caller.
type RateResolver struct {
	BaseService
	store    portsrepo.ExchangeRateRepositoryFacade
	live     providers.LiveRateFetcher
	settings ResolverSettings
	metrics  *metrics.Recorder
	now      func() time.Time

	flights    singleflight.Group
	writeBacks sync.WaitGroup
}

// ResolverOption is a functional option for configuring the resolver
type ResolverOption func(*RateResolver)

// WithResolverMetrics records tier and write-back metrics.
func WithResolverMetrics(recorder *metrics.Recorder) ResolverOption {
	return func(r *RateResolver) {
		r.metrics = recorder
	}
}

// WithResolverClock replaces time.Now for stamping written-back records.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *RateResolver) {
		r.now = now
	}
}

// NewRateResolver creates a resolver over store and live.
func NewRateResolver(store portsrepo.ExchangeRateRepositoryFacade, live providers.LiveRateFetcher, settings ResolverSettings, options ...ResolverOption) *RateResolver {
	if settings.WriteBackTimeout <= 0 {
		settings.WriteBackTimeout = defaultWriteBackTimeout
	}
	r := &RateResolver{
		store:    store,
		live:     live,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(r)
	}
	return r
}

var _ portssvc.RateResolverSvc = (*RateResolver)(nil)

// Resolve returns a strictly positive rate to the base currency for currency on date.
func (r *RateResolver) Resolve(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error) {
	resolved, err := r.ResolveWithTier(ctx, date, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return resolved.Rate, nil
}

// ResolveWithTier is Resolve plus the tier that produced the rate.
func (r *RateResolver) ResolveWithTier(ctx context.Context, date time.Time, currency domain.CurrencyCode) (domain.ResolvedRate, error) {
	day := domain.NormalizeDate(date)

	if r.settings.Currencies.IsBase(currency) {
		return r.resolved(ctx, decimal.NewFromInt(1), domain.TierIdentity, currency), nil
	}
	if !r.settings.Currencies.IsForeign(currency) {
		return domain.ResolvedRate{}, apperrors.NewValidationError(fmt.Sprintf("unsupported currency %q", currency))
	}

	query := domain.RateQuery{Date: day, Currency: currency}

	rate, err := r.lookupExact(ctx, query)
	if err == nil {
		return r.resolved(ctx, rate, domain.TierAuthoritative, currency), nil
	}
	r.logTierMiss(ctx, domain.TierAuthoritative, query, err)

	rate, err = r.lookupOnOrBefore(ctx, query)
	if err == nil {
		return r.resolved(ctx, rate, domain.TierCache, currency), nil
	}
	r.logTierMiss(ctx, domain.TierCache, query, err)

	rate, err = r.lookupLive(ctx, query)
	if err == nil {
		return r.resolved(ctx, rate, domain.TierLive, currency), nil
	}
	if errors.Is(err, apperrors.ErrConfiguration) {
		r.LogError(ctx, err, "Live exchange rate provider is misconfigured", slog.String("query", query.String()))
		return domain.ResolvedRate{}, err
	}
	r.logTierMiss(ctx, domain.TierLive, query, err)

	fallback, ok := r.settings.DefaultRates[currency]
	if !ok || !fallback.IsPositive() {
		return domain.ResolvedRate{}, fmt.Errorf("%w: no positive default rate configured for %s", apperrors.ErrConfiguration, currency)
	}
	r.LogWarn(ctx, "Using default exchange rate",
		slog.String("date", day.Format(domain.DateLayout)),
		slog.String("currency", currency.String()),
		slog.String("rate", fallback.String()))
	return r.resolved(ctx, fallback, domain.TierDefault, currency), nil
}

func (r *RateResolver) resolved(ctx context.Context, rate decimal.Decimal, tier domain.RateTier, currency domain.CurrencyCode) domain.ResolvedRate {
	r.metrics.RecordTier(ctx, tier, currency)
	return domain.ResolvedRate{Rate: rate, Tier: tier}
}

func (r *RateResolver) logTierMiss(ctx context.Context, tier domain.RateTier, query domain.RateQuery, err error) {
	attrs := []any{
		slog.String("tier", string(tier)),
		slog.String("query", query.String()),
		slog.String("error", err.Error()),
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		r.LogDebug(ctx, "Exchange rate tier missed", attrs...)
		return
	}
	r.LogWarn(ctx, "Exchange rate tier failed", attrs...)
}

func checkPositive(rate decimal.Decimal, query domain.RateQuery) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: rate %s for %s is not positive", apperrors.ErrDataIntegrity, rate, query)
	}
	return nil
}

func (r *RateResolver) lookupExact(ctx context.Context, query domain.RateQuery) (decimal.Decimal, error) {
	rate, err := r.store.LookupExactRate(ctx, query.Date, query.Currency)
	if err != nil {
		return decimal.Zero, transient(err)
	}
	return rate, checkPositive(rate, query)
}

func (r *RateResolver) lookupOnOrBefore(ctx context.Context, query domain.RateQuery) (decimal.Decimal, error) {
	rate, found, err := r.store.FindRateOnOrBefore(ctx, query.Date, query.Currency)
	if err != nil {
		return decimal.Zero, transient(err)
	}
	if err := checkPositive(rate, query); err != nil {
		return decimal.Zero, err
	}
	if !found.Equal(query.Date) {
		r.LogDebug(ctx, "Carrying forward earlier exchange rate",
			slog.String("query", query.String()),
			slog.String("rate_date", found.Format(domain.DateLayout)))
	}
	return rate, nil
}

// lookupLive coalesces concurrent fetches for the same date. The shared fetch is
// detached from any single caller's cancellation; a caller that gives up early
// moves on to the default tier.
func (r *RateResolver) lookupLive(ctx context.Context, query domain.RateQuery) (decimal.Decimal, error) {
	if r.live == nil {
		return decimal.Zero, fmt.Errorf("%w: no live rate provider", apperrors.ErrTransientLookup)
	}
	key := query.Date.Format(domain.DateLayout)

	ch := r.flights.DoChan(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		set, err := r.live.Fetch(fetchCtx, query.Date)
		if err != nil {
			return nil, err
		}
		if set != nil {
			r.writeBack(fetchCtx, *set)
		}
		return set, nil
	})

	select {
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("%w: %v", apperrors.ErrTransientLookup, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		set, _ := res.Val.(*domain.LiveRateSet)
		if set == nil {
			return decimal.Zero, fmt.Errorf("%w: live provider returned nothing for %s", apperrors.ErrNotFound, key)
		}
		rate, ok := set.Rate(query.Currency)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: live provider has no %s rate for %s", apperrors.ErrNotFound, query.Currency, key)
		}
		return rate, nil
	}
}

// writeBack persists the whole provider answer under the requested date in a
// detached goroutine. Failures are logged and counted, never returned.
func (r *RateResolver) writeBack(ctx context.Context, set domain.LiveRateSet) {
	record := set.ToRecord(domain.SourceLive, r.now())
	if !record.HasAnyRate() {
		return
	}
	logger := r.GetLogger(ctx)

	r.writeBacks.Add(1)
	go func() {
		defer r.writeBacks.Done()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.settings.WriteBackTimeout)
		defer cancel()

		if err := r.store.UpsertRateRecord(writeCtx, record); err != nil {
			r.metrics.RecordWriteBackFailure(writeCtx)
			logger.Error("Failed to write back live exchange rates",
				slog.String("date", record.Date.Format(domain.DateLayout)),
				slog.String("error", err.Error()))
			return
		}
		logger.Debug("Wrote back live exchange rates", slog.String("date", record.Date.Format(domain.DateLayout)))
	}()
}

// Drain blocks until pending write-backs finish or ctx is done.
func (r *RateResolver) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.writeBacks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transient tags store failures other than a plain miss as ErrTransientLookup.
func transient(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrDataIntegrity) || errors.Is(err, apperrors.ErrTransientLookup) {
		return err
	}
	return fmt.Errorf("%w: %w", apperrors.ErrTransientLookup, err)
}
