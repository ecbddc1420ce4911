package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/SscSPs/expense_tracker/fx"

// Recorder holds the instruments for exchange-rate resolution.
type Recorder struct {
	tierCounter       metric.Int64Counter
	writeBackFailures metric.Int64Counter
	liveFetchDuration metric.Float64Histogram
}

// NewRecorder creates the instruments on the given meter provider.
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(meterName)

	tierCounter, err := meter.Int64Counter("fx.resolve.tier",
		metric.WithDescription("Rates resolved, by the fallback tier that produced them"),
		metric.WithUnit("{rate}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tier counter: %w", err)
	}
	writeBackFailures, err := meter.Int64Counter("fx.writeback.failures",
		metric.WithDescription("Live rates that could not be written back to the cache"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create write-back counter: %w", err)
	}
	liveFetchDuration, err := meter.Float64Histogram("fx.live.fetch.duration",
		metric.WithDescription("Duration of live rate provider calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch histogram: %w", err)
	}

	return &Recorder{
		tierCounter:       tierCounter,
		writeBackFailures: writeBackFailures,
		liveFetchDuration: liveFetchDuration,
	}, nil
}

// NewNoopRecorder returns a recorder whose instruments discard everything.
func NewNoopRecorder() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider())
	return r
}

// RecordTier counts one resolution served by tier.
func (r *Recorder) RecordTier(ctx context.Context, tier domain.RateTier, currency domain.CurrencyCode) {
	if r == nil {
		return
	}
	r.tierCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", string(tier)),
		attribute.String("currency", currency.String()),
	))
}

// RecordWriteBackFailure counts one failed cache write-back.
func (r *Recorder) RecordWriteBackFailure(ctx context.Context) {
	if r == nil {
		return
	}
	r.writeBackFailures.Add(ctx, 1)
}

// RecordLiveFetch records the duration of one provider call and its outcome.
func (r *Recorder) RecordLiveFetch(ctx context.Context, elapsed time.Duration, outcome string) {
	if r == nil {
		return
	}
	r.liveFetchDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Setup installs the global meter provider. With an empty endpoint a noop provider
// is installed and the returned shutdown does nothing.
func Setup(ctx context.Context, serviceName, endpoint, environment string) (metric.MeterProvider, func(context.Context) error, error) {
	if endpoint == "" {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))),
	)
	otel.SetMeterProvider(provider)
	return provider, provider.Shutdown, nil
}
