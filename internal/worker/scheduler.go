package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
	portssvc "github.com/SscSPs/expense_tracker/internal/core/ports/services"
	"github.com/SscSPs/expense_tracker/internal/middleware"
	"github.com/samber/lo"
)

const syncLockKey = "fx:sync:lock"

// Scheduler runs background jobs until stopped.
type Scheduler interface {
	Start(ctx context.Context)
	Stop()
}

// RateSyncScheduler runs the administrative rate sync on a fixed interval.
type RateSyncScheduler struct {
	sync     portssvc.RateSyncSvc
	locker   Locker
	interval time.Duration
	logger   *slog.Logger
	today    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Scheduler = (*RateSyncScheduler)(nil)

// NewRateSyncScheduler creates a scheduler. A nil locker runs every tick unguarded.
func NewRateSyncScheduler(syncSvc portssvc.RateSyncSvc, locker Locker, interval time.Duration, logger *slog.Logger) *RateSyncScheduler {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateSyncScheduler{
		sync:     syncSvc,
		locker:   locker,
		interval: interval,
		logger:   logger.With(slog.String("component", "rate_sync_scheduler")),
		today:    domain.Today,
	}
}

// Start runs one sync immediately and then one per interval. A non-positive
// interval disables the scheduler.
func (s *RateSyncScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Rate sync scheduler disabled")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	ctx = middleware.WithLogger(ctx, s.logger)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
	s.logger.Info("Rate sync scheduler started", slog.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for an in-flight run to return.
func (s *RateSyncScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RunOnce performs a single guarded sync for today. It reports whether a sync ran.
func (s *RateSyncScheduler) RunOnce(ctx context.Context) bool {
	runCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	unlock, err := s.locker.TryLock(runCtx, syncLockKey, s.interval)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			s.logger.Debug("Another replica holds the sync lock, skipping run")
		} else {
			s.logger.Warn("Failed to take sync lock, skipping run", slog.String("error", err.Error()))
		}
		return false
	}
	defer func() {
		if err := unlock(context.WithoutCancel(runCtx)); err != nil {
			s.logger.Warn("Failed to release sync lock", slog.String("error", err.Error()))
		}
	}()

	result, err := s.sync.Sync(runCtx, lo.ToPtr(s.today()))
	if err != nil {
		s.logger.Error("Scheduled rate sync failed", slog.String("error", err.Error()))
		return true
	}
	s.logger.Info("Scheduled rate sync finished", slog.Bool("success", result.Success), slog.String("summary", result.Summary))
	return true
}
