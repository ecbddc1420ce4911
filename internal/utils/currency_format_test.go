package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := map[string]string{
		"110.444":  "110.44",
		"0.125":    "0.13",
		"-0.125":   "-0.13",
		"497":      "497.00",
		"0":        "0.00",
		"12.34999": "12.35",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatMoney(decimal.RequireFromString(in)), in)
	}
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "4.97123456", FormatRate(decimal.RequireFromString("4.97123456")))
}
