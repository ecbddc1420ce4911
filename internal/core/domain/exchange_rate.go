package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource is the provenance tag stored with a rate record.
type RateSource string

const (
	SourceLive   RateSource = "live"
	SourceSync   RateSource = "sync"
	SourceManual RateSource = "manual"
)

// RateTier names the stage of the fallback chain that produced a rate.
type RateTier string

const (
	TierIdentity      RateTier = "identity"
	TierAuthoritative RateTier = "authoritative"
	TierCache         RateTier = "cache"
	TierLive          RateTier = "live"
	TierDefault       RateTier = "default"
)

// RateRecord is the cached set of rates to the base currency for one calendar date.
// A currency whose rate is unknown for the date has an invalid NullDecimal.
type RateRecord struct {
	Date         time.Time                            `json:"date"`
	Rates        map[CurrencyCode]decimal.NullDecimal `json:"rates"`
	Source       RateSource                           `json:"source"`
	ProviderDate *time.Time                           `json:"providerDate,omitempty"`
	Timestamps
}

// Rate returns the rate for code when it is present and strictly positive.
func (r RateRecord) Rate(code CurrencyCode) (decimal.Decimal, bool) {
	return presentRate(r.Rates, code)
}

// Validate enforces the record invariants: a date and strictly positive rates where present.
func (r RateRecord) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("rate record date is required")
	}
	for code, rate := range r.Rates {
		if rate.Valid && !rate.Decimal.IsPositive() {
			return fmt.Errorf("rate for %s on %s must be positive, got %s", code, r.Date.Format(DateLayout), rate.Decimal)
		}
	}
	return nil
}

// HasAnyRate reports whether at least one currency has a usable rate.
func (r RateRecord) HasAnyRate() bool {
	for code := range r.Rates {
		if _, ok := r.Rate(code); ok {
			return true
		}
	}
	return false
}

// RateQuery is one unit of resolution work.
type RateQuery struct {
	Date     time.Time
	Currency CurrencyCode
}

func (q RateQuery) String() string {
	return fmt.Sprintf("%s@%s", q.Currency, q.Date.Format(DateLayout))
}

// ResolvedRate is a strictly positive rate together with the tier that produced it.
type ResolvedRate struct {
	Rate decimal.Decimal `json:"rate"`
	Tier RateTier        `json:"tier"`
}

// LiveRateSet is a provider answer: the date asked for, the date the provider
// actually used, and an explicit optional rate per supported currency.
type LiveRateSet struct {
	RequestedDate time.Time
	ProviderDate  time.Time
	Rates         map[CurrencyCode]decimal.NullDecimal
}

// Rate returns the rate for code when the provider supplied a strictly positive one.
func (s LiveRateSet) Rate(code CurrencyCode) (decimal.Decimal, bool) {
	return presentRate(s.Rates, code)
}

// ToRecord turns the provider answer into a record keyed by the requested date.
func (s LiveRateSet) ToRecord(source RateSource, now time.Time) RateRecord {
	rates := make(map[CurrencyCode]decimal.NullDecimal, len(s.Rates))
	for code, rate := range s.Rates {
		rates[code] = rate
	}
	record := RateRecord{
		Date:       NormalizeDate(s.RequestedDate),
		Rates:      rates,
		Source:     source,
		Timestamps: Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if !s.ProviderDate.IsZero() {
		providerDate := NormalizeDate(s.ProviderDate)
		record.ProviderDate = &providerDate
	}
	return record
}

func presentRate(rates map[CurrencyCode]decimal.NullDecimal, code CurrencyCode) (decimal.Decimal, bool) {
	rate, ok := rates[code]
	if !ok || !rate.Valid || !rate.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return rate.Decimal, true
}
