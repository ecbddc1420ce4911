package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/SscSPs/expense_tracker/internal/dto"
	"github.com/SscSPs/expense_tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

// exchangeRateHandler handles HTTP requests related to exchange rates.
type exchangeRateHandler struct {
	exchangeRateService portssvc.ExchangeRateSvcFacade
	currencies          domain.CurrencySet
}

// newExchangeRateHandler creates a new exchangeRateHandler.
func newExchangeRateHandler(ers portssvc.ExchangeRateSvcFacade, currencies domain.CurrencySet) *exchangeRateHandler {
	return &exchangeRateHandler{
		exchangeRateService: ers,
		currencies:          currencies,
	}
}

// registerExchangeRateRoutes registers routes related to exchange rates.
func registerExchangeRateRoutes(rg *gin.RouterGroup, exchangeRateService portssvc.ExchangeRateSvcFacade, currencies domain.CurrencySet) {
	h := newExchangeRateHandler(exchangeRateService, currencies)

	exchangeRates := rg.Group("/exchange-rates")
	{
		exchangeRates.GET("", h.listRateRecords)
		exchangeRates.GET("/latest", h.getLatestRateRecord)
		exchangeRates.GET("/:currency", h.resolveRate)
	}
}

// getLatestRateRecord godoc
// @Summary Get the latest cached exchange rates
// @Tags exchange rates
// @Produce  json
// @Success 200 {object} dto.RateRecordResponse
// @Failure 404 {object} map[string]string "No rates cached yet"
// @Security BearerAuth
// @Router /exchange-rates/latest [get]
func (h *exchangeRateHandler) getLatestRateRecord(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	record, err := h.exchangeRateService.GetLatestRateRecord(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve latest exchange rates")
		return
	}

	c.JSON(http.StatusOK, dto.ToRateRecordResponse(*record))
}

// listRateRecords godoc
// @Summary List cached exchange rates in a date range
// @Tags exchange rates
// @Produce  json
// @Param   from query string true "First date (YYYY-MM-DD)"
// @Param   to   query string true "Last date (YYYY-MM-DD)"
// @Success 200 {array} dto.RateRecordResponse
// @Failure 400 {object} map[string]string "Invalid range"
// @Security BearerAuth
// @Router /exchange-rates [get]
func (h *exchangeRateHandler) listRateRecords(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var query dto.ListRateRecordsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		logger.Warn("Invalid query for ListRateRecords", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}
	from, err := domain.ParseDate(query.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date: " + err.Error()})
		return
	}
	to, err := domain.ParseDate(query.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date: " + err.Error()})
		return
	}

	records, err := h.exchangeRateService.ListRateRecords(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, logger, err, "Failed to list exchange rates")
		return
	}

	c.JSON(http.StatusOK, dto.ToListRateRecordResponse(records))
}

// resolveRate godoc
// @Summary Resolve the rate of a currency to the base currency
// @Description Walks the fallback chain and reports which tier answered
// @Tags exchange rates
// @Produce  json
// @Param   currency path  string true  "Currency code (3 letters)"
// @Param   date     query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} dto.ResolvedRateResponse
// @Failure 400 {object} map[string]string "Invalid currency or date"
// @Security BearerAuth
// @Router /exchange-rates/{currency} [get]
func (h *exchangeRateHandler) resolveRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	currency, err := domain.ParseCurrencyCode(c.Param("currency"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var query dto.ResolveRateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}
	date, err := dateOrToday(query.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolved, err := h.exchangeRateService.ResolveWithTier(c.Request.Context(), date, currency)
	if err != nil {
		respondError(c, logger, err, "Failed to resolve exchange rate")
		return
	}

	logger.Debug("Exchange rate resolved", slog.String("currency", currency.String()), slog.String("tier", string(resolved.Tier)))
	c.JSON(http.StatusOK, dto.ToResolvedRateResponse(date, currency, h.currencies.Base, resolved))
}
