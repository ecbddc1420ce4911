package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/SscSPs/expense_tracker/internal/dto"
	"github.com/SscSPs/expense_tracker/internal/handlers"
	"github.com/SscSPs/expense_tracker/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Mock ExchangeRateService ---
type MockExchangeRateService struct {
	mock.Mock
}

func (m *MockExchangeRateService) GetLatestRateRecord(ctx context.Context) (*domain.RateRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateRecord), args.Error(1)
}

func (m *MockExchangeRateService) ListRateRecords(ctx context.Context, start, end time.Time) ([]domain.RateRecord, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RateRecord), args.Error(1)
}

func (m *MockExchangeRateService) Resolve(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockExchangeRateService) ResolveWithTier(ctx context.Context, date time.Time, currency domain.CurrencyCode) (domain.ResolvedRate, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(domain.ResolvedRate), args.Error(1)
}

// --- Mock ConversionService ---
type MockConversionService struct {
	mock.Mock
}

func (m *MockConversionService) ToBase(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, amount, currency, date)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockConversionService) FromBase(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, amount, currency, date)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockConversionService) Breakdown(ctx context.Context, amount decimal.Decimal, currency domain.CurrencyCode, date time.Time) (*domain.ConversionResult, error) {
	args := m.Called(ctx, amount, currency, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversionResult), args.Error(1)
}

// --- Mock RateSyncService ---
type MockRateSyncService struct {
	mock.Mock
}

func (m *MockRateSyncService) Sync(ctx context.Context, date *time.Time) (*domain.SyncResult, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncResult), args.Error(1)
}

// --- Test Suite ---
type HandlersTestSuite struct {
	suite.Suite
	router        *gin.Engine
	jwtSecret     string
	exchangeRates *MockExchangeRateService
	conversions   *MockConversionService
	rateSync      *MockRateSyncService
}

func (suite *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.jwtSecret = "test-secret-key-that-is-long-enough"

	suite.exchangeRates = new(MockExchangeRateService)
	suite.conversions = new(MockConversionService)
	suite.rateSync = new(MockRateSyncService)

	cfg := &config.Config{
		JWTSecret: suite.jwtSecret,
		RateLimit: "1000-M",
		FX: config.FXConfig{
			Currencies: domain.CurrencySet{Base: "RON", Foreign: []domain.CurrencyCode{"EUR", "USD", "GBP"}},
		},
	}
	err := handlers.RegisterRoutes(suite.router, cfg, &portssvc.ServiceContainer{
		ExchangeRate: suite.exchangeRates,
		Conversion:   suite.conversions,
		RateSync:     suite.rateSync,
	})
	suite.Require().NoError(err)
}

func (suite *HandlersTestSuite) TearDownTest() {
	suite.exchangeRates.AssertExpectations(suite.T())
	suite.conversions.AssertExpectations(suite.T())
	suite.rateSync.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) generateTestToken(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(suite.jwtSecret))
	suite.Require().NoError(err)
	return signed
}

func (suite *HandlersTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken("user-1"))
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func day(s string) time.Time {
	d, _ := domain.ParseDate(s)
	return d
}

func (suite *HandlersTestSuite) TestHealthIsPublic() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlersTestSuite) TestAPIRequiresToken() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/exchange-rates/latest", nil))
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestGetLatestRateRecord() {
	record := &domain.RateRecord{
		Date: day("2026-01-16"),
		Rates: map[domain.CurrencyCode]decimal.NullDecimal{
			"EUR": decimal.NewNullDecimal(decimal.RequireFromString("4.9771")),
			"GBP": {},
		},
		Source: domain.SourceSync,
	}
	suite.exchangeRates.On("GetLatestRateRecord", mock.Anything).Return(record, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/latest", nil)

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.RateRecordResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("2026-01-16", resp.Date)
	suite.Require().NotNil(resp.Rates["EUR"])
	suite.Equal("4.9771", *resp.Rates["EUR"])
	suite.Nil(resp.Rates["GBP"])
}

func (suite *HandlersTestSuite) TestGetLatestRateRecord_NotFound() {
	suite.exchangeRates.On("GetLatestRateRecord", mock.Anything).Return(nil, apperrors.NewNotFoundError("no exchange rate records cached")).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/latest", nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestListRateRecords() {
	suite.exchangeRates.On("ListRateRecords", mock.Anything, day("2026-01-10"), day("2026-01-12")).
		Return([]domain.RateRecord{{Date: day("2026-01-12")}, {Date: day("2026-01-10")}}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates?from=2026-01-10&to=2026-01-12", nil)

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp []dto.RateRecordResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp, 2)
	suite.Equal("2026-01-12", resp[0].Date)
}

func (suite *HandlersTestSuite) TestListRateRecords_BadQuery() {
	w := suite.do(http.MethodGet, "/api/v1/exchange-rates?from=10-01-2026&to=2026-01-12", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestListRateRecords_ImpossibleDate() {
	w := suite.do(http.MethodGet, "/api/v1/exchange-rates?from=2026-02-30&to=2026-03-02", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.exchangeRates.AssertNotCalled(suite.T(), "ListRateRecords", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *HandlersTestSuite) TestSwaggerDocIsServed() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	suite.Require().Equal(http.StatusOK, w.Code)
	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &doc))
	suite.Equal("/api/v1", doc.BasePath)
	for _, path := range []string{"/exchange-rates", "/exchange-rates/latest", "/exchange-rates/{currency}", "/conversions/to-base", "/conversions/from-base", "/conversions/breakdown", "/admin/exchange-rates/sync"} {
		suite.Contains(doc.Paths, path)
	}
}

func (suite *HandlersTestSuite) TestResolveRate() {
	suite.exchangeRates.On("ResolveWithTier", mock.Anything, day("2026-01-17"), domain.CurrencyCode("USD")).
		Return(domain.ResolvedRate{Rate: decimal.RequireFromString("4.5123"), Tier: domain.TierCache}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/usd?date=2026-01-17", nil)

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.ResolvedRateResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("USD", resp.Currency)
	suite.Equal("RON", resp.BaseCurrency)
	suite.Equal("4.5123", resp.Rate)
	suite.Equal("cache", resp.Tier)
}

func (suite *HandlersTestSuite) TestResolveRate_UnsupportedCurrency() {
	suite.exchangeRates.On("ResolveWithTier", mock.Anything, mock.Anything, domain.CurrencyCode("JPY")).
		Return(domain.ResolvedRate{}, apperrors.NewValidationError(`unsupported currency "JPY"`)).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/JPY", nil)

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestResolveRate_ConfigurationErrorIsOpaque() {
	suite.exchangeRates.On("ResolveWithTier", mock.Anything, mock.Anything, domain.CurrencyCode("EUR")).
		Return(domain.ResolvedRate{}, apperrors.ErrConfiguration).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/EUR", nil)

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.Contains(w.Body.String(), "misconfigured")
}

func (suite *HandlersTestSuite) TestToBase() {
	suite.conversions.On("ToBase", mock.Anything, decimal.RequireFromString("100"), domain.CurrencyCode("EUR"), day("2026-01-15")).
		Return(decimal.RequireFromString("497.004"), nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/conversions/to-base", gin.H{"amount": "100", "currency": "eur", "date": "2026-01-15"})

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.AmountConversionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("497.00", resp.Amount)
	suite.Equal("RON", resp.Currency)
	suite.Equal("EUR", resp.SourceCurrency)
}

func (suite *HandlersTestSuite) TestFromBase() {
	suite.conversions.On("FromBase", mock.Anything, decimal.RequireFromString("497"), domain.CurrencyCode("USD"), day("2026-01-15")).
		Return(decimal.RequireFromString("110.4444"), nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/conversions/from-base", gin.H{"amount": 497, "currency": "USD", "date": "2026-01-15"})

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.AmountConversionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("110.44", resp.Amount)
	suite.Equal("USD", resp.Currency)
	suite.Equal("RON", resp.SourceCurrency)
}

func (suite *HandlersTestSuite) TestConversion_Validation() {
	cases := []gin.H{
		{"currency": "EUR"},
		{"amount": "1", "currency": "JPY"},
		{"amount": "1", "currency": "EURO"},
		{"amount": "1", "currency": "EUR", "date": "15/01/2026"},
	}
	for _, body := range cases {
		w := suite.do(http.MethodPost, "/api/v1/conversions/to-base", body)
		suite.Equal(http.StatusBadRequest, w.Code, "body %v", body)
	}
}

func (suite *HandlersTestSuite) TestBreakdown() {
	date := day("2026-01-15")
	result := &domain.ConversionResult{
		Date:           date,
		SourceAmount:   decimal.RequireFromString("100"),
		SourceCurrency: "EUR",
		BaseCurrency:   "RON",
		BaseAmount:     decimal.RequireFromString("497"),
		Amounts: map[domain.CurrencyCode]decimal.Decimal{
			"EUR": decimal.RequireFromString("100"),
			"USD": decimal.RequireFromString("110.44"),
			"GBP": decimal.RequireFromString("85.69"),
		},
		Rates: map[domain.CurrencyCode]domain.ResolvedRate{
			"EUR": {Rate: decimal.RequireFromString("4.97"), Tier: domain.TierAuthoritative},
			"USD": {Rate: decimal.RequireFromString("4.5"), Tier: domain.TierLive},
			"GBP": {Rate: decimal.RequireFromString("5.8"), Tier: domain.TierDefault},
		},
	}
	suite.conversions.On("Breakdown", mock.Anything, decimal.RequireFromString("100"), domain.CurrencyCode("EUR"), date).Return(result, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/conversions/breakdown", gin.H{"amount": "100", "currency": "EUR", "date": "2026-01-15"})

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.BreakdownResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("497.00", resp.BaseAmount)
	suite.Equal("110.44", resp.Amounts["USD"])
	suite.Equal("100.00", resp.Amounts["EUR"])
	suite.Equal("default", resp.Rates["GBP"].Tier)
	suite.Equal("4.5", resp.Rates["USD"].Rate)
}

func (suite *HandlersTestSuite) TestSync() {
	providerDate := day("2026-01-16")
	suite.rateSync.On("Sync", mock.Anything, mock.MatchedBy(func(d *time.Time) bool { return d != nil && d.Equal(day("2026-01-17")) })).
		Return(&domain.SyncResult{
			Success:      true,
			Date:         day("2026-01-17"),
			ProviderDate: &providerDate,
			Rates:        map[domain.CurrencyCode]decimal.Decimal{"EUR": decimal.RequireFromString("4.97")},
			Summary:      "synced 1 of 3 rates for 2026-01-17",
		}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/admin/exchange-rates/sync", gin.H{"date": "2026-01-17"})

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.SyncResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.True(resp.Success)
	suite.Require().NotNil(resp.ProviderDate)
	suite.Equal("2026-01-16", *resp.ProviderDate)
	suite.Equal("4.97", resp.Rates["EUR"])
}

func (suite *HandlersTestSuite) TestSync_EmptyBodyDefaultsToToday() {
	suite.rateSync.On("Sync", mock.Anything, mock.MatchedBy(func(d *time.Time) bool { return d != nil })).
		Return(&domain.SyncResult{Success: false, Date: domain.Today(), Rates: map[domain.CurrencyCode]decimal.Decimal{}}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/admin/exchange-rates/sync", nil)

	suite.Equal(http.StatusBadGateway, w.Code)
}

func TestSwaggerIsHiddenInProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := &config.Config{
		IsProduction: true,
		JWTSecret:    "test-secret-key-that-is-long-enough",
		RateLimit:    "1000-M",
		FX: config.FXConfig{
			Currencies: domain.CurrencySet{Base: "RON", Foreign: []domain.CurrencyCode{"EUR"}},
		},
	}
	require.NoError(t, handlers.RegisterRoutes(router, cfg, &portssvc.ServiceContainer{
		ExchangeRate: new(MockExchangeRateService),
		Conversion:   new(MockConversionService),
		RateSync:     new(MockRateSyncService),
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
