package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyncResult reports the outcome of an administrative rate sync.
type SyncResult struct {
	Success      bool
	Date         time.Time
	ProviderDate *time.Time
	Rates        map[CurrencyCode]decimal.Decimal
	Summary      string
}
