package pgsql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portsrepo "github.com/SscSPs/expense_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/expense_tracker/internal/models"
	"github.com/SscSPs/expense_tracker/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const exchangeRateTable = "exchange_rate_cache"

// PgxExchangeRateRepository implements the exchange rate cache on PostgreSQL.
// The table has one nullable rate_<code> column per supported foreign currency.
type PgxExchangeRateRepository struct {
	BaseRepository
	currencies []domain.CurrencyCode
	columns    map[domain.CurrencyCode]string
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*PgxExchangeRateRepository)(nil)

// NewPgxExchangeRateRepository creates a new PgxExchangeRateRepository for the given currencies.
func NewPgxExchangeRateRepository(db DBTX, currencies []domain.CurrencyCode) *PgxExchangeRateRepository {
	columns := make(map[domain.CurrencyCode]string, len(currencies))
	for _, code := range currencies {
		columns[code] = rateColumn(code)
	}
	return &PgxExchangeRateRepository{
		BaseRepository: BaseRepository{DB: db},
		currencies:     currencies,
		columns:        columns,
	}
}

func rateColumnName(code domain.CurrencyCode) string {
	return "rate_" + strings.ToLower(code.String())
}

func rateColumn(code domain.CurrencyCode) string {
	return pgx.Identifier{rateColumnName(code)}.Sanitize()
}

// CheckSchema verifies the cache table has a rate column for every configured currency.
func (r *PgxExchangeRateRepository) CheckSchema(ctx context.Context) error {
	var columns []string
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(array_agg(column_name::text), '{}')
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1;
	`, exchangeRateTable).Scan(&columns)
	if err != nil {
		return fmt.Errorf("failed to inspect %s columns: %w", exchangeRateTable, err)
	}

	missing := lo.Filter(r.currencies, func(code domain.CurrencyCode, _ int) bool {
		return !lo.Contains(columns, rateColumnName(code))
	})
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s has no rate column for %v, add a migration before enabling them",
			apperrors.ErrConfiguration, exchangeRateTable, missing)
	}
	return nil
}

func (r *PgxExchangeRateRepository) column(code domain.CurrencyCode) (string, error) {
	col, ok := r.columns[code]
	if !ok {
		return "", apperrors.NewValidationError("unsupported currency " + code.String())
	}
	return col, nil
}

func (r *PgxExchangeRateRepository) selectColumns() string {
	cols := []string{"date"}
	for _, code := range r.currencies {
		cols = append(cols, r.columns[code])
	}
	cols = append(cols, "source", "provider_date", "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

// LookupExactRate calls the fx_rate_on server-side function for the exact date.
func (r *PgxExchangeRateRepository) LookupExactRate(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, error) {
	if _, err := r.column(currency); err != nil {
		return decimal.Zero, err
	}

	var rate decimal.NullDecimal
	err := r.DB.QueryRow(ctx, `SELECT fx_rate_on($1, $2)`, domain.NormalizeDate(date), currency.String()).Scan(&rate)
	if err != nil {
		return decimal.Zero, apperrors.NewAppError(http.StatusInternalServerError, "failed to call fx_rate_on", err)
	}
	if !rate.Valid {
		return decimal.Zero, apperrors.NewNotFoundError(fmt.Sprintf("no %s rate for %s", currency, date.Format(domain.DateLayout)))
	}
	if !rate.Decimal.IsPositive() {
		return decimal.Zero, apperrors.NewDataIntegrityError(fmt.Sprintf("stored %s rate for %s is not positive: %s", currency, date.Format(domain.DateLayout), rate.Decimal))
	}
	return rate.Decimal, nil
}

// FindRateOnOrBefore returns the newest non-null rate for currency dated on or before date.
func (r *PgxExchangeRateRepository) FindRateOnOrBefore(ctx context.Context, date time.Time, currency domain.CurrencyCode) (decimal.Decimal, time.Time, error) {
	col, err := r.column(currency)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	query := fmt.Sprintf(`
		SELECT date, %[1]s
		FROM %[2]s
		WHERE date <= $1 AND %[1]s IS NOT NULL
		ORDER BY date DESC
		LIMIT 1;
	`, col, exchangeRateTable)

	var (
		foundDate time.Time
		rate      decimal.NullDecimal
	)
	err = r.DB.QueryRow(ctx, query, domain.NormalizeDate(date)).Scan(&foundDate, &rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, time.Time{}, apperrors.NewNotFoundError(fmt.Sprintf("no %s rate on or before %s", currency, date.Format(domain.DateLayout)))
		}
		return decimal.Zero, time.Time{}, apperrors.NewAppError(http.StatusInternalServerError, "failed to find rate on or before date", err)
	}
	if !rate.Valid || !rate.Decimal.IsPositive() {
		return decimal.Zero, time.Time{}, apperrors.NewDataIntegrityError(fmt.Sprintf("stored %s rate for %s is not positive", currency, foundDate.Format(domain.DateLayout)))
	}
	return rate.Decimal, domain.NormalizeDate(foundDate), nil
}

// FindLatestRateRecord retrieves the record with the greatest date.
func (r *PgxExchangeRateRepository) FindLatestRateRecord(ctx context.Context) (*domain.RateRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY date DESC LIMIT 1;`, r.selectColumns(), exchangeRateTable)

	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to find latest rate record", err)
	}
	records, err := r.scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFoundError("no exchange rate records cached")
	}
	return &records[0], nil
}

// ListRateRecords retrieves the records between start and end inclusive, newest first.
func (r *PgxExchangeRateRepository) ListRateRecords(ctx context.Context, start, end time.Time) ([]domain.RateRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE date BETWEEN $1 AND $2
		ORDER BY date DESC;
	`, r.selectColumns(), exchangeRateTable)

	rows, err := r.DB.Query(ctx, query, domain.NormalizeDate(start), domain.NormalizeDate(end))
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to list rate records", err)
	}
	return r.scanRecords(rows)
}

func (r *PgxExchangeRateRepository) scanRecords(rows pgx.Rows) ([]domain.RateRecord, error) {
	defer rows.Close()

	records := []domain.RateRecord{}
	for rows.Next() {
		row := models.ExchangeRateCacheRow{Rates: make(map[string]decimal.NullDecimal, len(r.currencies))}
		rates := make([]decimal.NullDecimal, len(r.currencies))

		dest := []any{&row.Date}
		for i := range rates {
			dest = append(dest, &rates[i])
		}
		dest = append(dest, &row.Source, &row.ProviderDate, &row.CreatedAt, &row.UpdatedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to scan rate record", err)
		}
		for i, code := range r.currencies {
			row.Rates[code.String()] = rates[i]
		}

		record := mapping.ToDomainRateRecord(row)
		if err := record.Validate(); err != nil {
			return nil, apperrors.NewDataIntegrityError(err.Error())
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "error iterating rate records", err)
	}
	return records, nil
}

// UpsertRateRecord inserts or updates the record for its date.
func (r *PgxExchangeRateRepository) UpsertRateRecord(ctx context.Context, record domain.RateRecord) error {
	if err := record.Validate(); err != nil {
		return apperrors.NewDataIntegrityError(err.Error())
	}
	if unknown := lo.Filter(lo.Keys(record.Rates), func(code domain.CurrencyCode, _ int) bool {
		_, ok := r.columns[code]
		return !ok
	}); len(unknown) > 0 {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported currencies in rate record: %v", unknown))
	}

	row := mapping.ToModelExchangeRateRow(record)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}

	insertCols := []string{"date"}
	args := []any{row.Date}
	updates := make([]string, 0, len(r.currencies)+3)
	for _, code := range r.currencies {
		col := r.columns[code]
		insertCols = append(insertCols, col)
		args = append(args, row.Rates[code.String()])
		updates = append(updates, fmt.Sprintf("%[1]s = COALESCE(EXCLUDED.%[1]s, %[2]s.%[1]s)", col, exchangeRateTable))
	}
	insertCols = append(insertCols, "source", "provider_date", "created_at", "updated_at")
	args = append(args, row.Source, row.ProviderDate, row.CreatedAt, row.UpdatedAt)
	updates = append(updates,
		"source = EXCLUDED.source",
		fmt.Sprintf("provider_date = COALESCE(EXCLUDED.provider_date, %s.provider_date)", exchangeRateTable),
		"updated_at = EXCLUDED.updated_at",
	)

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (date) DO UPDATE SET %s;
	`, exchangeRateTable, strings.Join(insertCols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	if _, err := r.DB.Exec(ctx, query, args...); err != nil {
		return apperrors.NewAppError(http.StatusInternalServerError, "failed to upsert rate record", err)
	}
	return nil
}
