package domain

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// CurrencyCode is an upper-case ISO 4217 alphabetic code (e.g. "EUR").
type CurrencyCode string

func (c CurrencyCode) String() string {
	return string(c)
}

// ParseCurrencyCode normalizes and validates a three letter currency code.
func ParseCurrencyCode(raw string) (CurrencyCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 3 {
		return "", fmt.Errorf("currency code %q must be 3 letters", raw)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency code %q must contain only letters", raw)
		}
	}
	return CurrencyCode(code), nil
}

// CurrencySet is the base currency plus the foreign currencies the system converts between.
type CurrencySet struct {
	Base    CurrencyCode
	Foreign []CurrencyCode
}

// IsBase reports whether code is the base currency.
func (s CurrencySet) IsBase(code CurrencyCode) bool {
	return code == s.Base
}

// IsForeign reports whether code is one of the supported foreign currencies.
func (s CurrencySet) IsForeign(code CurrencyCode) bool {
	return lo.Contains(s.Foreign, code)
}

// Supports reports whether code is either the base or a supported foreign currency.
func (s CurrencySet) Supports(code CurrencyCode) bool {
	return s.IsBase(code) || s.IsForeign(code)
}

// Validate checks that the set is usable: a base, at least one foreign currency,
// no duplicates and no foreign entry equal to the base.
func (s CurrencySet) Validate() error {
	if s.Base == "" {
		return fmt.Errorf("base currency is required")
	}
	if len(s.Foreign) == 0 {
		return fmt.Errorf("at least one foreign currency is required")
	}
	if dups := lo.FindDuplicates(s.Foreign); len(dups) > 0 {
		return fmt.Errorf("duplicate foreign currencies: %v", dups)
	}
	if s.IsForeign(s.Base) {
		return fmt.Errorf("base currency %s cannot also be a foreign currency", s.Base)
	}
	return nil
}
