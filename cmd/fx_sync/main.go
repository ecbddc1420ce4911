// Command fx_sync refreshes the exchange-rate cache for a single date and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	"github.com/SscSPs/expense_tracker/internal/core/services"
	"github.com/SscSPs/expense_tracker/internal/middleware"
	"github.com/SscSPs/expense_tracker/internal/observability/metrics"
	"github.com/SscSPs/expense_tracker/internal/platform/bootstrap"
	"github.com/SscSPs/expense_tracker/internal/platform/config"
)

func main() {
	dateFlag := flag.String("date", "", "date to sync as YYYY-MM-DD (defaults to today)")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout for the sync")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := bootstrap.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	var date *time.Time
	if *dateFlag != "" {
		parsed, err := domain.ParseDate(*dateFlag)
		if err != nil {
			logger.Error("Invalid -date", slog.String("date", *dateFlag), slog.String("error", err.Error()))
			os.Exit(2)
		}
		date = &parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	ok, err := run(middleware.WithLogger(ctx, logger), cfg, logger, date)
	if err != nil {
		logger.Error("Rate sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !ok {
		os.Exit(3)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, date *time.Time) (bool, error) {
	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return false, err
	}
	defer stores.Close()

	recorder := metrics.NewNoopRecorder()
	live, err := bootstrap.NewLiveRateClient(cfg, recorder)
	if err != nil {
		return false, err
	}

	container, _ := services.NewServiceContainer(cfg, stores.Repos, live, recorder)
	result, err := container.RateSync.Sync(ctx, date)
	if err != nil {
		return false, err
	}

	fmt.Println(result.Summary)
	return result.Success, nil
}
