package handlers

import (
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// registerValidators adds the "currency" tag to gin's validator engine. A value
// passes when it is a three letter code the service converts.
func registerValidators(currencies domain.CurrencySet) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		code, err := domain.ParseCurrencyCode(fl.Field().String())
		if err != nil {
			return false
		}
		return currencies.Supports(code)
	})
}

// dateOrToday parses an optional YYYY-MM-DD value, defaulting to today in UTC.
// Binding has already validated the layout.
func dateOrToday(raw string) (time.Time, error) {
	if raw == "" {
		return domain.Today(), nil
	}
	return domain.ParseDate(raw)
}
