package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/expense_tracker/internal/core/ports/repositories"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	defaultKeyPrefix = "fx:"
	rateFieldPrefix  = "rate:"
	scanPageSize     = 32
)

// lookupExactRateScript reads one currency field of one date hash server side.
var lookupExactRateScript = redis.NewScript(`return redis.call('HGET', KEYS[1], ARGV[1])`)

// ExchangeRateRepository keeps the rate cache in Redis: one hash per date
// (fx:rates:YYYY-MM-DD) plus a sorted set of known dates scored by day number.
type ExchangeRateRepository struct {
	client     redis.UniversalClient
	currencies []domain.CurrencyCode
	prefix     string
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*ExchangeRateRepository)(nil)

// NewExchangeRateRepository creates a Redis backed rate cache. An empty prefix uses "fx:".
func NewExchangeRateRepository(client redis.UniversalClient, currencies []domain.CurrencyCode, prefix string) *ExchangeRateRepository {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &ExchangeRateRepository{client: client, currencies: currencies, prefix: prefix}
}

func (r *ExchangeRateRepository) datesKey() string {
	return r.prefix + "dates"
}

func (r *ExchangeRateRepository) recordKey(date time.Time) string {
	return r.prefix + "rates:" + domain.NormalizeDate(date).Format(domain.DateLayout)
}

func dayScore(date time.Time) float64 {
	return float64(domain.NormalizeDate(date).Unix() / 86400)
}

func (r *ExchangeRateRepository) checkCurrency(currency domain.CurrencyCode) error {
	if !lo.Contains(r.currencies, currency) {
		return apperrors.NewValidationError("unsupported currency " + currency.String())
	}
	return nil
}

func parseRate(raw string, currency domain.CurrencyCode, date string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewDataIntegrityError(fmt.Sprintf("stored %s rate for %s is not a number: %q", currency, date, raw))
	}
	if !rate.IsPositive() {
		return decimal.Zero, apperrors.NewDataIntegrityError(fmt.Sprintf("stored %s rate for %s is not positive: %s", currency, date, rate))
	}
	return rate, nil
}

// LookupExactRate runs the lookup script for the exact date.
func (r *ExchangeRateRepository) LookupExactRate(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error) {
	if err := r.checkCurrency(currency); err != nil {
		return decimal.Zero, err
	}
	day := domain.NormalizeDate(date).Format(domain.DateLayout)

	raw, err := lookupExactRateScript.Run(ctx, r.client, []string{r.recordKey(date)}, rateFieldPrefix+currency.String()).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, apperrors.NewNotFoundError(fmt.Sprintf("no %s rate for %s", currency, day))
		}
		return decimal.Zero, apperrors.NewAppError(http.StatusInternalServerError, "failed to run exact rate lookup", err)
	}
	return parseRate(raw, currency, day)
}

// FindRateOnOrBefore walks known dates downward from date until one has a value for currency.
func (r *ExchangeRateRepository) FindRateOnOrBefore(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, time.Time, error) {
	if err := r.checkCurrency(currency); err != nil {
		return decimal.Zero, time.Time{}, err
	}
	field := rateFieldPrefix + currency.String()
	maxScore := fmt.Sprintf("%d", int64(dayScore(date)))

	for offset := int64(0); ; offset += scanPageSize {
		days, err := r.client.ZRevRangeByScore(ctx, r.datesKey(), &redis.ZRangeBy{
			Max:    maxScore,
			Min:    "-inf",
			Offset: offset,
			Count:  scanPageSize,
		}).Result()
		if err != nil {
			return decimal.Zero, time.Time{}, apperrors.NewAppError(http.StatusInternalServerError, "failed to scan cached dates", err)
		}
		if len(days) == 0 {
			break
		}

		cmds := make([]*redis.StringCmd, len(days))
		_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, day := range days {
				cmds[i] = pipe.HGet(ctx, r.prefix+"rates:"+day, field)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return decimal.Zero, time.Time{}, apperrors.NewAppError(http.StatusInternalServerError, "failed to read cached rates", err)
		}

		for i, cmd := range cmds {
			raw, err := cmd.Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return decimal.Zero, time.Time{}, apperrors.NewAppError(http.StatusInternalServerError, "failed to read cached rate", err)
			}
			rate, err := parseRate(raw, currency, days[i])
			if err != nil {
				return decimal.Zero, time.Time{}, err
			}
			found, err := domain.ParseDate(days[i])
			if err != nil {
				return decimal.Zero, time.Time{}, apperrors.NewDataIntegrityError("malformed cached date " + days[i])
			}
			return rate, found, nil
		}

		if len(days) < scanPageSize {
			break
		}
	}

	return decimal.Zero, time.Time{}, apperrors.NewNotFoundError(fmt.Sprintf("no %s rate on or before %s", currency, date.Format(domain.DateLayout)))
}

// FindLatestRateRecord returns the record with the greatest date.
func (r *ExchangeRateRepository) FindLatestRateRecord(ctx context.Context) (*domain.RateRecord, error) {
	days, err := r.client.ZRevRange(ctx, r.datesKey(), 0, 0).Result()
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to find latest cached date", err)
	}
	if len(days) == 0 {
		return nil, apperrors.NewNotFoundError("no exchange rate records cached")
	}
	records, err := r.loadRecords(ctx, days)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFoundError("no exchange rate records cached")
	}
	return &records[0], nil
}

// ListRateRecords returns records between start and end inclusive, newest first.
func (r *ExchangeRateRepository) ListRateRecords(ctx context.Context, start, end time.Time) ([]domain.RateRecord, error) {
	days, err := r.client.ZRevRangeByScore(ctx, r.datesKey(), &redis.ZRangeBy{
		Max: fmt.Sprintf("%d", int64(dayScore(end))),
		Min: fmt.Sprintf("%d", int64(dayScore(start))),
	}).Result()
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to list cached dates", err)
	}
	return r.loadRecords(ctx, days)
}

func (r *ExchangeRateRepository) loadRecords(ctx context.Context, days []string) ([]domain.RateRecord, error) {
	cmds := make([]*redis.MapStringStringCmd, len(days))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, day := range days {
			cmds[i] = pipe.HGetAll(ctx, r.prefix+"rates:"+day)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to load cached rate records", err)
	}

	records := make([]domain.RateRecord, 0, len(days))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		record, err := r.decodeRecord(days[i], fields)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *ExchangeRateRepository) decodeRecord(day string, fields map[string]string) (domain.RateRecord, error) {
	date, err := domain.ParseDate(day)
	if err != nil {
		return domain.RateRecord{}, apperrors.NewDataIntegrityError("malformed cached date " + day)
	}

	record := domain.RateRecord{
		Date:   date,
		Rates:  make(map[domain.CurrencyCode]decimal.NullDecimal, len(r.currencies)),
		Source: domain.RateSource(fields["source"]),
	}
	for _, code := range r.currencies {
		raw, ok := fields[rateFieldPrefix+code.String()]
		if !ok {
			record.Rates[code] = decimal.NullDecimal{}
			continue
		}
		rate, err := parseRate(raw, code, day)
		if err != nil {
			return domain.RateRecord{}, err
		}
		record.Rates[code] = decimal.NewNullDecimal(rate)
	}
	if raw := fields["provider_date"]; raw != "" {
		if pd, err := domain.ParseDate(raw); err == nil {
			record.ProviderDate = &pd
		}
	}
	record.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return record, nil
}

// UpsertRateRecord writes the record's present rates into the date hash and indexes the date.
func (r *ExchangeRateRepository) UpsertRateRecord(ctx context.Context, record domain.RateRecord) error {
	if err := record.Validate(); err != nil {
		return apperrors.NewDataIntegrityError(err.Error())
	}

	values := map[string]any{}
	for code, rate := range record.Rates {
		if err := r.checkCurrency(code); err != nil {
			return err
		}
		if rate.Valid {
			values[rateFieldPrefix+code.String()] = rate.Decimal.String()
		}
	}

	now := record.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	values["source"] = string(record.Source)
	values["updated_at"] = now.UTC().Format(time.RFC3339Nano)
	if record.ProviderDate != nil {
		values["provider_date"] = record.ProviderDate.Format(domain.DateLayout)
	}

	key := r.recordKey(record.Date)
	day := domain.NormalizeDate(record.Date).Format(domain.DateLayout)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.HSetNX(ctx, key, "created_at", createdAt.UTC().Format(time.RFC3339Nano))
		pipe.ZAdd(ctx, r.datesKey(), redis.Z{Score: dayScore(record.Date), Member: day})
		return nil
	})
	if err != nil {
		return apperrors.NewAppError(http.StatusInternalServerError, "failed to upsert rate record", err)
	}
	return nil
}
