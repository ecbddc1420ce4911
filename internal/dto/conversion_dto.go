package dto

import (
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/utils"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ConversionRequest defines the body shared by the conversion endpoints.
// Date defaults to today (UTC) when omitted.
type ConversionRequest struct {
	Amount   *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string" example:"497.00"`
	Currency string           `json:"currency" binding:"required,currency" example:"EUR"`
	Date     string           `json:"date" binding:"omitempty,datetime=2006-01-02" example:"2026-01-15"`
}

// AmountConversionResponse is the result of a single to-base or from-base conversion.
type AmountConversionResponse struct {
	Date           string `json:"date"`
	SourceAmount   string `json:"sourceAmount"`
	SourceCurrency string `json:"sourceCurrency"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

// RateUsedResponse is the rate applied for one currency and where it came from.
type RateUsedResponse struct {
	Rate string `json:"rate"`
	Tier string `json:"tier"`
}

// BreakdownResponse expresses one amount in every supported currency.
type BreakdownResponse struct {
	Date           string                      `json:"date"`
	SourceAmount   string                      `json:"sourceAmount"`
	SourceCurrency string                      `json:"sourceCurrency"`
	BaseCurrency   string                      `json:"baseCurrency"`
	BaseAmount     string                      `json:"baseAmount"`
	Amounts        map[string]string           `json:"amounts"`
	Rates          map[string]RateUsedResponse `json:"rates"`
}

// ToAmountConversionResponse builds the response for a single conversion.
func ToAmountConversionResponse(date time.Time, source decimal.Decimal, sourceCurrency domain.CurrencyCode, amount decimal.Decimal, currency domain.CurrencyCode) AmountConversionResponse {
	return AmountConversionResponse{
		Date:           date.Format(domain.DateLayout),
		SourceAmount:   utils.FormatMoney(source),
		SourceCurrency: sourceCurrency.String(),
		Amount:         utils.FormatMoney(amount),
		Currency:       currency.String(),
	}
}

// ToBreakdownResponse converts a domain.ConversionResult to BreakdownResponse DTO
func ToBreakdownResponse(result *domain.ConversionResult) BreakdownResponse {
	return BreakdownResponse{
		Date:           result.Date.Format(domain.DateLayout),
		SourceAmount:   utils.FormatMoney(result.SourceAmount),
		SourceCurrency: result.SourceCurrency.String(),
		BaseCurrency:   result.BaseCurrency.String(),
		BaseAmount:     utils.FormatMoney(result.BaseAmount),
		Amounts: lo.MapEntries(result.Amounts, func(code domain.CurrencyCode, amount decimal.Decimal) (string, string) {
			return code.String(), utils.FormatMoney(amount)
		}),
		Rates: lo.MapEntries(result.Rates, func(code domain.CurrencyCode, rate domain.ResolvedRate) (string, RateUsedResponse) {
			return code.String(), RateUsedResponse{Rate: utils.FormatRate(rate.Rate), Tier: string(rate.Tier)}
		}),
	}
}
