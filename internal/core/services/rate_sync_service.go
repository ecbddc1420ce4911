package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/core/ports/providers"
	portsrepo "github.com/SscSPs/expense_tracker/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// rateSyncService fetches live rates and upserts them unconditionally.
type rateSyncService struct {
	BaseService
	store      portsrepo.ExchangeRateWriter
	live       providers.LiveRateFetcher
	currencies domain.CurrencySet
	now        func() time.Time
}

// NewRateSyncService creates the administrative sync service.
func NewRateSyncService(store portsrepo.ExchangeRateWriter, live providers.LiveRateFetcher, currencies domain.CurrencySet) portssvc.RateSyncSvc {
	return &rateSyncService{
		store:      store,
		live:       live,
		currencies: currencies,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ portssvc.RateSyncSvc = (*rateSyncService)(nil)

// Sync fetches the provider's rates for date (today UTC when nil) and stores them.
// A provider outage is reported through SyncResult, not as an error; storage
// failures and configuration errors are returned.
func (s *rateSyncService) Sync(ctx context.Context, date *time.Time) (*domain.SyncResult, error) {
	target := domain.NormalizeDate(s.now())
	if date != nil {
		target = domain.NormalizeDate(*date)
	}
	day := target.Format(domain.DateLayout)

	set, err := s.live.Fetch(ctx, target)
	if err != nil {
		s.LogError(ctx, err, "Exchange rate sync failed", slog.String("date", day))
		return nil, err
	}
	if set == nil {
		s.LogWarn(ctx, "Exchange rate sync got no rates from provider", slog.String("date", day))
		return &domain.SyncResult{
			Success: false,
			Date:    target,
			Rates:   map[domain.CurrencyCode]decimal.Decimal{},
			Summary: fmt.Sprintf("provider returned no rates for %s", day),
		}, nil
	}

	record := set.ToRecord(domain.SourceSync, s.now())
	if err := s.store.UpsertRateRecord(ctx, record); err != nil {
		s.LogError(ctx, err, "Failed to store synced exchange rates", slog.String("date", day))
		return nil, fmt.Errorf("failed to store synced rates for %s: %w", day, err)
	}

	rates := make(map[domain.CurrencyCode]decimal.Decimal, len(s.currencies.Foreign))
	for _, code := range s.currencies.Foreign {
		if rate, ok := set.Rate(code); ok {
			rates[code] = rate
		}
	}
	missing := lo.Filter(s.currencies.Foreign, func(code domain.CurrencyCode, _ int) bool {
		_, ok := rates[code]
		return !ok
	})

	summary := fmt.Sprintf("synced %d of %d rates for %s", len(rates), len(s.currencies.Foreign), day)
	if len(missing) > 0 {
		summary += "; missing " + strings.Join(lo.Map(missing, func(c domain.CurrencyCode, _ int) string { return c.String() }), ",")
	}
	s.LogInfo(ctx, "Exchange rates synced", slog.String("date", day), slog.Int("rates", len(rates)))

	return &domain.SyncResult{
		Success:      true,
		Date:         target,
		ProviderDate: record.ProviderDate,
		Rates:        rates,
		Summary:      summary,
	}, nil
}
