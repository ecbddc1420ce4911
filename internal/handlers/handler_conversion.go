package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/SscSPs/expense_tracker/internal/dto"
	"github.com/SscSPs/expense_tracker/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// conversionHandler handles HTTP requests for amount conversion.
type conversionHandler struct {
	conversionService portssvc.ConversionSvc
	currencies        domain.CurrencySet
}

func newConversionHandler(cs portssvc.ConversionSvc, currencies domain.CurrencySet) *conversionHandler {
	return &conversionHandler{conversionService: cs, currencies: currencies}
}

// registerConversionRoutes registers routes related to conversions.
func registerConversionRoutes(rg *gin.RouterGroup, conversionService portssvc.ConversionSvc, currencies domain.CurrencySet) {
	h := newConversionHandler(conversionService, currencies)

	conversions := rg.Group("/conversions")
	{
		conversions.POST("/to-base", h.toBase)
		conversions.POST("/from-base", h.fromBase)
		conversions.POST("/breakdown", h.breakdown)
	}
}

type conversionInput struct {
	amount   decimal.Decimal
	currency domain.CurrencyCode
	date     time.Time
}

// bindConversion binds and validates the request body, answering 400 on failure.
func bindConversion(c *gin.Context, logger *slog.Logger) (conversionInput, bool) {
	var req dto.ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind conversion request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return conversionInput{}, false
	}
	currency, err := domain.ParseCurrencyCode(req.Currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return conversionInput{}, false
	}
	date, err := dateOrToday(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return conversionInput{}, false
	}
	return conversionInput{amount: *req.Amount, currency: currency, date: date}, true
}

type convertFunc func(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (decimal.Decimal, error)

// toBase godoc
// @Summary Convert an amount to the base currency
// @Tags conversions
// @Accept  json
// @Produce  json
// @Param   request body dto.ConversionRequest true "Amount, currency and optional date"
// @Success 200 {object} dto.AmountConversionResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Security BearerAuth
// @Router /conversions/to-base [post]
func (h *conversionHandler) toBase(c *gin.Context) {
	h.convert(c, h.conversionService.ToBase, func(in conversionInput) (domain.CurrencyCode, domain.CurrencyCode) {
		return in.currency, h.currencies.Base
	})
}

// fromBase godoc
// @Summary Convert a base currency amount to another currency
// @Tags conversions
// @Accept  json
// @Produce  json
// @Param   request body dto.ConversionRequest true "Base amount, target currency and optional date"
// @Success 200 {object} dto.AmountConversionResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Security BearerAuth
// @Router /conversions/from-base [post]
func (h *conversionHandler) fromBase(c *gin.Context) {
	h.convert(c, h.conversionService.FromBase, func(in conversionInput) (domain.CurrencyCode, domain.CurrencyCode) {
		return h.currencies.Base, in.currency
	})
}

func (h *conversionHandler) convert(c *gin.Context, fn convertFunc, direction func(conversionInput) (domain.CurrencyCode, domain.CurrencyCode)) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	in, ok := bindConversion(c, logger)
	if !ok {
		return
	}

	converted, err := fn(c.Request.Context(), in.amount, in.currency, in.date)
	if err != nil {
		respondError(c, logger, err, "Failed to convert amount")
		return
	}

	from, to := direction(in)
	c.JSON(http.StatusOK, dto.ToAmountConversionResponse(in.date, in.amount, from, converted, to))
}

// breakdown godoc
// @Summary Express an amount in every supported currency
// @Tags conversions
// @Accept  json
// @Produce  json
// @Param   request body dto.ConversionRequest true "Amount, currency and optional date"
// @Success 200 {object} dto.BreakdownResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Security BearerAuth
// @Router /conversions/breakdown [post]
func (h *conversionHandler) breakdown(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	in, ok := bindConversion(c, logger)
	if !ok {
		return
	}

	result, err := h.conversionService.Breakdown(c.Request.Context(), in.amount, in.currency, in.date)
	if err != nil {
		respondError(c, logger, err, "Failed to compute breakdown")
		return
	}

	c.JSON(http.StatusOK, dto.ToBreakdownResponse(result))
}
