package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPrecision is the number of decimal places monetary amounts are rounded to.
const MoneyPrecision int32 = 2

// RoundMoney rounds an amount to MoneyPrecision places, half away from zero.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPrecision)
}

// ConversionResult is the cross-currency breakdown of a single amount.
// Amounts are rounded with RoundMoney; rates are kept unrounded.
type ConversionResult struct {
	Date           time.Time
	SourceAmount   decimal.Decimal
	SourceCurrency CurrencyCode
	BaseCurrency   CurrencyCode
	BaseAmount     decimal.Decimal
	Amounts        map[CurrencyCode]decimal.Decimal
	Rates          map[CurrencyCode]ResolvedRate
}
