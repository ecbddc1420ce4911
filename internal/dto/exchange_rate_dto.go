package dto

import (
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/utils"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ListRateRecordsQuery defines the query parameters for listing cached rate records.
type ListRateRecordsQuery struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to" binding:"required,datetime=2006-01-02"`
}

// ResolveRateQuery defines the query parameters for resolving a single rate.
type ResolveRateQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// RateRecordResponse is a cached rate record. Currencies without a known rate are null.
type RateRecordResponse struct {
	Date         string             `json:"date"`
	Rates        map[string]*string `json:"rates"`
	Source       string             `json:"source"`
	ProviderDate *string            `json:"providerDate,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// ResolvedRateResponse is a resolved rate and the tier that produced it.
type ResolvedRateResponse struct {
	Date         string `json:"date"`
	Currency     string `json:"currency"`
	BaseCurrency string `json:"baseCurrency"`
	Rate         string `json:"rate"`
	Tier         string `json:"tier"`
}

// SyncRequest is the optional body of the administrative sync endpoint.
type SyncRequest struct {
	Date string `json:"date" binding:"omitempty,datetime=2006-01-02" example:"2026-01-15"`
}

// SyncResponse reports the outcome of an administrative sync.
type SyncResponse struct {
	Success      bool              `json:"success"`
	Date         string            `json:"date"`
	ProviderDate *string           `json:"providerDate,omitempty"`
	Rates        map[string]string `json:"rates"`
	Summary      string            `json:"summary"`
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return lo.ToPtr(t.Format(domain.DateLayout))
}

// ToRateRecordResponse converts a domain.RateRecord to RateRecordResponse DTO
func ToRateRecordResponse(record domain.RateRecord) RateRecordResponse {
	rates := make(map[string]*string, len(record.Rates))
	for code, rate := range record.Rates {
		if rate.Valid {
			rates[code.String()] = lo.ToPtr(utils.FormatRate(rate.Decimal))
		} else {
			rates[code.String()] = nil
		}
	}
	return RateRecordResponse{
		Date:         record.Date.Format(domain.DateLayout),
		Rates:        rates,
		Source:       string(record.Source),
		ProviderDate: formatDatePtr(record.ProviderDate),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

// ToListRateRecordResponse converts a slice of records, keeping their order.
func ToListRateRecordResponse(records []domain.RateRecord) []RateRecordResponse {
	return lo.Map(records, func(r domain.RateRecord, _ int) RateRecordResponse {
		return ToRateRecordResponse(r)
	})
}

// ToResolvedRateResponse converts a resolved rate to its DTO.
func ToResolvedRateResponse(date time.Time, currency, base domain.CurrencyCode, resolved domain.ResolvedRate) ResolvedRateResponse {
	return ResolvedRateResponse{
		Date:         date.Format(domain.DateLayout),
		Currency:     currency.String(),
		BaseCurrency: base.String(),
		Rate:         utils.FormatRate(resolved.Rate),
		Tier:         string(resolved.Tier),
	}
}

// ToSyncResponse converts a domain.SyncResult to SyncResponse DTO
func ToSyncResponse(result *domain.SyncResult) SyncResponse {
	return SyncResponse{
		Success:      result.Success,
		Date:         result.Date.Format(domain.DateLayout),
		ProviderDate: formatDatePtr(result.ProviderDate),
		Rates: lo.MapEntries(result.Rates, func(code domain.CurrencyCode, rate decimal.Decimal) (string, string) {
			return code.String(), utils.FormatRate(rate)
		}),
		Summary: result.Summary,
	}
}
