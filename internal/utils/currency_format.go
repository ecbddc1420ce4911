package utils

import (
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FormatMoney formats an amount with the monetary precision, rounding half away from zero.
// Example: 110.444 returns "110.44", 0.125 returns "0.13"
func FormatMoney(amount decimal.Decimal) string {
	return domain.RoundMoney(amount).StringFixed(domain.MoneyPrecision)
}

// FormatRate formats a rate without rounding so the value used stays auditable.
func FormatRate(rate decimal.Decimal) string {
	return rate.String()
}
