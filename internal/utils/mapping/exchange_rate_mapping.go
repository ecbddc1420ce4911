package mapping

import (
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/models"
	"github.com/shopspring/decimal"
)

// ToModelExchangeRateRow converts a domain RateRecord to a cache row model
func ToModelExchangeRateRow(d domain.RateRecord) models.ExchangeRateCacheRow {
	rates := make(map[string]decimal.NullDecimal, len(d.Rates))
	for code, rate := range d.Rates {
		rates[code.String()] = rate
	}
	return models.ExchangeRateCacheRow{
		Date:         domain.NormalizeDate(d.Date),
		Rates:        rates,
		Source:       string(d.Source),
		ProviderDate: d.ProviderDate,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// ToDomainRateRecord converts a cache row model to a domain RateRecord
func ToDomainRateRecord(m models.ExchangeRateCacheRow) domain.RateRecord {
	rates := make(map[domain.CurrencyCode]decimal.NullDecimal, len(m.Rates))
	for code, rate := range m.Rates {
		rates[domain.CurrencyCode(code)] = rate
	}
	var providerDate *time.Time
	if m.ProviderDate != nil {
		pd := domain.NormalizeDate(*m.ProviderDate)
		providerDate = &pd
	}
	return domain.RateRecord{
		Date:         domain.NormalizeDate(m.Date),
		Rates:        rates,
		Source:       domain.RateSource(m.Source),
		ProviderDate: providerDate,
		Timestamps: domain.Timestamps{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
	}
}
