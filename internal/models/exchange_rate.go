package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRateCacheRow mirrors one row of exchange_rate_cache.
// Rates is keyed by the upper-case currency code of each rate_<code> column.
type ExchangeRateCacheRow struct {
	Date         time.Time
	Rates        map[string]decimal.NullDecimal
	Source       string
	ProviderDate *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
