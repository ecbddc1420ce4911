package forex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/core/ports/providers"
	"github.com/SscSPs/expense_tracker/internal/middleware"
	"github.com/SscSPs/expense_tracker/internal/observability/metrics"
	"github.com/coocood/freecache"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	apiKeyHeader       = "X-API-Key"
	defaultTimeout     = 5 * time.Second
	maxResponseBytes   = 1 << 20
	// freecache caps a single entry at 1/1024 of the cache size.
	memoCacheSizeBytes = 8 << 20
)

// Options configures a LiveRateClient.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MemoTTL    time.Duration
	Currencies []domain.CurrencyCode
	HTTPClient *http.Client
	Metrics    *metrics.Recorder
}

// LiveRateClient fetches the rates a forex provider reports for a date.
// Every failure short of missing credentials is reported as absent.
type LiveRateClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	memoTTL    int
	currencies []domain.CurrencyCode
	httpClient *http.Client
	memo       *freecache.Cache
	metrics    *metrics.Recorder
}

var _ providers.LiveRateFetcher = (*LiveRateClient)(nil)

type providerResponse struct {
	RequestedDate string          `json:"requested_date"`
	RateDate      string          `json:"rate_date"`
	Rates         []providerEntry `json:"rates"`
}

type providerEntry struct {
	Currency string          `json:"currency"`
	Rate     json.RawMessage `json:"rate"`
}

// memoEntry is the parsed answer for the supported currencies only.
type memoEntry struct {
	ProviderDate string                                      `json:"p,omitempty"`
	Rates        map[domain.CurrencyCode]decimal.NullDecimal `json:"r"`
}

// NewLiveRateClient validates the options and returns a ready client.
func NewLiveRateClient(opts Options) (*LiveRateClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: forex provider API key is not set", apperrors.ErrConfiguration)
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: forex provider URL is not set", apperrors.ErrConfiguration)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid forex provider URL: %v", apperrors.ErrConfiguration, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	client := &LiveRateClient{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		timeout:    timeout,
		currencies: opts.Currencies,
		httpClient: httpClient,
		metrics:    opts.Metrics,
	}
	if ttl := int(opts.MemoTTL.Seconds()); ttl > 0 {
		client.memoTTL = ttl
		client.memo = freecache.NewCache(memoCacheSizeBytes)
	}
	return client, nil
}

// Fetch asks the provider for the rates as of date. (nil, nil) means absent.
func (c *LiveRateClient) Fetch(ctx context.Context, date time.Time) (*domain.LiveRateSet, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: forex provider API key is not set", apperrors.ErrConfiguration)
	}
	logger := middleware.GetLoggerFromCtx(ctx).With(slog.String("component", "forex_client"))
	day := domain.NormalizeDate(date).Format(domain.DateLayout)

	if set, ok := c.fromMemo(day); ok {
		logger.Debug("Live rates served from memo", slog.String("date", day))
		return set, nil
	}

	start := time.Now()
	body, err := c.get(ctx, day)
	if err != nil {
		c.metrics.RecordLiveFetch(ctx, time.Since(start), "error")
		logger.Warn("Live rate fetch failed", slog.String("date", day), slog.String("error", err.Error()))
		return nil, nil
	}

	set, err := c.parse(body, date)
	if err != nil {
		c.metrics.RecordLiveFetch(ctx, time.Since(start), "malformed")
		logger.Warn("Live rate response rejected", slog.String("date", day), slog.String("error", err.Error()))
		return nil, nil
	}
	c.metrics.RecordLiveFetch(ctx, time.Since(start), "ok")

	c.toMemo(logger, day, set)
	return set, nil
}

func (c *LiveRateClient) get(ctx context.Context, day string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := endpoint.Query()
	q.Set("date", day)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func (c *LiveRateClient) parse(body []byte, requested time.Time) (*domain.LiveRateSet, error) {
	var payload providerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed provider response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, errors.New("provider returned no rates")
	}

	entries := lo.SliceToMap(payload.Rates, func(e providerEntry) (domain.CurrencyCode, json.RawMessage) {
		code, err := domain.ParseCurrencyCode(e.Currency)
		if err != nil {
			return "", nil
		}
		return code, e.Rate
	})

	set := &domain.LiveRateSet{
		RequestedDate: domain.NormalizeDate(requested),
		Rates:         make(map[domain.CurrencyCode]decimal.NullDecimal, len(c.currencies)),
	}
	if pd, err := domain.ParseDate(payload.RateDate); err == nil {
		set.ProviderDate = pd
	}
	for _, code := range c.currencies {
		set.Rates[code] = parseEntryRate(entries[code])
	}
	if !lo.SomeBy(c.currencies, func(code domain.CurrencyCode) bool { return set.Rates[code].Valid }) {
		return nil, errors.New("provider returned no usable rate for a supported currency")
	}
	return set, nil
}

// parseEntryRate accepts JSON numbers and strings; anything else, or a non-positive
// value, is absent.
func parseEntryRate(raw json.RawMessage) decimal.NullDecimal {
	if len(raw) == 0 {
		return decimal.NullDecimal{}
	}
	var rate decimal.NullDecimal
	if err := rate.UnmarshalJSON(raw); err != nil || !rate.Valid || !rate.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return rate
}

func (c *LiveRateClient) fromMemo(day string) (*domain.LiveRateSet, bool) {
	if c.memo == nil {
		return nil, false
	}
	raw, err := c.memo.Get([]byte(day))
	if err != nil {
		return nil, false
	}
	requested, err := domain.ParseDate(day)
	if err != nil {
		return nil, false
	}
	var entry memoEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}

	set := &domain.LiveRateSet{
		RequestedDate: requested,
		Rates:         make(map[domain.CurrencyCode]decimal.NullDecimal, len(c.currencies)),
	}
	if pd, err := domain.ParseDate(entry.ProviderDate); err == nil {
		set.ProviderDate = pd
	}
	for _, code := range c.currencies {
		set.Rates[code] = entry.Rates[code]
	}
	return set, true
}

func (c *LiveRateClient) toMemo(logger *slog.Logger, day string, set *domain.LiveRateSet) {
	if c.memo == nil {
		return
	}
	entry := memoEntry{Rates: lo.PickBy(set.Rates, func(_ domain.CurrencyCode, rate decimal.NullDecimal) bool { return rate.Valid })}
	if !set.ProviderDate.IsZero() {
		entry.ProviderDate = set.ProviderDate.Format(domain.DateLayout)
	}
	raw, err := json.Marshal(entry)
	if err == nil {
		err = c.memo.Set([]byte(day), raw, c.memoTTL)
	}
	if err != nil {
		logger.Warn("Failed to memoize live rates", slog.String("date", day), slog.String("error", err.Error()))
	}
}
