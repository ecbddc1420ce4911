package services

import (
	"github.com/SscSPs/expense_tracker/internal/core/ports/providers"
	portsrepo "github.com/SscSPs/expense_tracker/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/SscSPs/expense_tracker/internal/observability/metrics"
	"github.com/SscSPs/expense_tracker/internal/platform/config"
)

// NewServiceContainer wires the exchange-rate services. The returned resolver is
// the one shared by every service; callers drain its write-backs on shutdown.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, live providers.LiveRateFetcher, recorder *metrics.Recorder) (*portssvc.ServiceContainer, *RateResolver) {
	resolver := NewRateResolver(
		repos.ExchangeRateRepo,
		live,
		ResolverSettings{
			Currencies:       cfg.FX.Currencies,
			DefaultRates:     cfg.FX.DefaultRates,
			WriteBackTimeout: cfg.FX.WriteBackTimeout,
		},
		WithResolverMetrics(recorder),
	)

	container := &portssvc.ServiceContainer{
		ExchangeRate: NewExchangeRateService(repos.ExchangeRateRepo, resolver),
		Conversion:   NewConversionService(resolver, cfg.FX.Currencies),
		RateSync:     NewRateSyncService(repos.ExchangeRateRepo, live, cfg.FX.Currencies),
	}
	return container, resolver
}
