package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/expense_tracker/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
)

// maxListRange bounds how many days a single listing may span.
const maxListRange = 366 * 24 * time.Hour

// ExchangeRateService exposes the cached records and, through the embedded
// resolver, rate resolution.
type ExchangeRateService struct {
	*RateResolver
	rateRepo portsrepo.ExchangeRateReader
}

// NewExchangeRateService creates a new ExchangeRateService.
func NewExchangeRateService(rateRepo portsrepo.ExchangeRateReader, resolver *RateResolver) *ExchangeRateService {
	return &ExchangeRateService{
		RateResolver: resolver,
		rateRepo:     rateRepo,
	}
}

var _ portssvc.ExchangeRateSvcFacade = (*ExchangeRateService)(nil)

// GetLatestRateRecord returns the most recent cached record.
func (s *ExchangeRateService) GetLatestRateRecord(ctx context.Context) (*domain.RateRecord, error) {
	record, err := s.rateRepo.FindLatestRateRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest exchange rates: %w", err)
	}
	return record, nil
}

// ListRateRecords returns cached records between start and end inclusive, newest first.
func (s *ExchangeRateService) ListRateRecords(ctx context.Context, start, end time.Time) ([]domain.RateRecord, error) {
	start, end = domain.NormalizeDate(start), domain.NormalizeDate(end)
	if end.Before(start) {
		return nil, apperrors.NewValidationError("range end must not be before start")
	}
	if end.Sub(start) > maxListRange {
		return nil, apperrors.NewValidationError("range must not exceed one year")
	}

	records, err := s.rateRepo.ListRateRecords(ctx, start, end)
	if err != nil {
		s.LogError(ctx, err, "Failed to list exchange rate records",
			slog.String("from", start.Format(domain.DateLayout)),
			slog.String("to", end.Format(domain.DateLayout)))
		return nil, fmt.Errorf("failed to list exchange rates: %w", err)
	}
	return records, nil
}
