package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SscSPs/expense_tracker/internal/apperrors"
	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

// FXConfig holds the exchange-rate resolution settings.
type FXConfig struct {
	ProviderURL      string
	ProviderAPIKey   string
	ProviderTimeout  time.Duration
	LiveCacheTTL     time.Duration
	WriteBackTimeout time.Duration
	SyncInterval     time.Duration
	Currencies       domain.CurrencySet
	DefaultRates     map[domain.CurrencyCode]decimal.Decimal
}

// Config holds application configuration.
type Config struct {
	Port          string
	IsProduction  bool
	LogLevel      string
	DatabaseURL   string
	EnableDBCheck bool
	MigrationsDir string

	RateStoreBackend string
	RedisURL         string

	JWTSecret          string
	RateLimit          string
	CORSAllowedOrigins []string

	ServiceName  string
	OTLPEndpoint string

	FX FXConfig
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("ENABLE_DB_CHECK", true)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("RATE_STORE_BACKEND", StoreBackendPostgres)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SERVICE_NAME", "expense-tracker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	v.SetDefault("FX_PROVIDER_URL", "https://forex.example.com/v1/rates")
	v.SetDefault("FX_PROVIDER_API_KEY", "")
	v.SetDefault("FX_PROVIDER_TIMEOUT", "5s")
	v.SetDefault("FX_LIVE_CACHE_TTL", "60s")
	v.SetDefault("FX_WRITE_BACK_TIMEOUT", "10s")
	v.SetDefault("FX_SYNC_INTERVAL", "0s")
	v.SetDefault("FX_BASE_CURRENCY", "RON")
	v.SetDefault("FX_SUPPORTED_CURRENCIES", "EUR,USD,GBP")
	v.SetDefault("FX_DEFAULT_RATES", "EUR:4.97,USD:4.50,GBP:5.80")

	v.AutomaticEnv()

	cfg := &Config{
		Port:               v.GetString("PORT"),
		IsProduction:       v.GetBool("IS_PRODUCTION"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:        v.GetString("PGSQL_URL"),
		EnableDBCheck:      v.GetBool("ENABLE_DB_CHECK"),
		MigrationsDir:      v.GetString("MIGRATIONS_DIR"),
		RateStoreBackend:   strings.ToLower(v.GetString("RATE_STORE_BACKEND")),
		RedisURL:           v.GetString("REDIS_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		RateLimit:          v.GetString("RATE_LIMIT"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		ServiceName:        v.GetString("SERVICE_NAME"),
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	switch cfg.RateStoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			log.Println("Warning: PGSQL_URL environment variable not set.")
		}
	case StoreBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("%w: REDIS_URL is required when RATE_STORE_BACKEND=redis", apperrors.ErrConfiguration)
		}
	default:
		return nil, fmt.Errorf("%w: unknown RATE_STORE_BACKEND %q", apperrors.ErrConfiguration, cfg.RateStoreBackend)
	}

	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	fx, err := loadFXConfig(v)
	if err != nil {
		return nil, err
	}
	cfg.FX = *fx

	return cfg, nil
}

func loadFXConfig(v *viper.Viper) (*FXConfig, error) {
	fx := &FXConfig{
		ProviderURL:    v.GetString("FX_PROVIDER_URL"),
		ProviderAPIKey: v.GetString("FX_PROVIDER_API_KEY"),
	}
	if fx.ProviderAPIKey == "" {
		// The live client refuses to start without it; see forex.NewLiveRateClient.
		log.Println("Warning: FX_PROVIDER_API_KEY not set. Live rate fetching will fail to initialize.")
	}

	var err error
	if fx.ProviderTimeout, err = parseDuration(v, "FX_PROVIDER_TIMEOUT"); err != nil {
		return nil, err
	}
	if fx.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("%w: FX_PROVIDER_TIMEOUT must be positive", apperrors.ErrConfiguration)
	}
	if fx.LiveCacheTTL, err = parseDuration(v, "FX_LIVE_CACHE_TTL"); err != nil {
		return nil, err
	}
	if fx.WriteBackTimeout, err = parseDuration(v, "FX_WRITE_BACK_TIMEOUT"); err != nil {
		return nil, err
	}
	if fx.SyncInterval, err = parseDuration(v, "FX_SYNC_INTERVAL"); err != nil {
		return nil, err
	}

	base, err := domain.ParseCurrencyCode(v.GetString("FX_BASE_CURRENCY"))
	if err != nil {
		return nil, fmt.Errorf("%w: FX_BASE_CURRENCY: %v", apperrors.ErrConfiguration, err)
	}
	foreign := make([]domain.CurrencyCode, 0)
	for _, raw := range splitList(v.GetString("FX_SUPPORTED_CURRENCIES")) {
		code, err := domain.ParseCurrencyCode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: FX_SUPPORTED_CURRENCIES: %v", apperrors.ErrConfiguration, err)
		}
		foreign = append(foreign, code)
	}
	fx.Currencies = domain.CurrencySet{Base: base, Foreign: foreign}
	if err := fx.Currencies.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}

	fx.DefaultRates, err = ParseDefaultRates(v.GetString("FX_DEFAULT_RATES"))
	if err != nil {
		return nil, err
	}
	for _, code := range foreign {
		if _, ok := fx.DefaultRates[code]; !ok {
			return nil, fmt.Errorf("%w: FX_DEFAULT_RATES has no entry for %s", apperrors.ErrConfiguration, code)
		}
	}

	return fx, nil
}

// ParseDefaultRates parses "EUR:4.97,USD:4.50" into a map of strictly positive rates.
func ParseDefaultRates(raw string) (map[domain.CurrencyCode]decimal.Decimal, error) {
	rates := make(map[domain.CurrencyCode]decimal.Decimal)
	for _, pair := range splitList(raw) {
		codePart, ratePart, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("%w: FX_DEFAULT_RATES entry %q must look like CODE:RATE", apperrors.ErrConfiguration, pair)
		}
		code, err := domain.ParseCurrencyCode(codePart)
		if err != nil {
			return nil, fmt.Errorf("%w: FX_DEFAULT_RATES: %v", apperrors.ErrConfiguration, err)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(ratePart))
		if err != nil {
			return nil, fmt.Errorf("%w: FX_DEFAULT_RATES rate for %s: %v", apperrors.ErrConfiguration, code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: FX_DEFAULT_RATES rate for %s must be positive", apperrors.ErrConfiguration, code)
		}
		rates[code] = rate
	}
	return rates, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid value for %s (%q): %v", apperrors.ErrConfiguration, key, raw, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
