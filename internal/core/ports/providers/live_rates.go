package providers

import (
	"context"
	"time"

	"github.com/SscSPs/expense_tracker/internal/core/domain"
)

// LiveRateFetcher fetches the provider's most recent rates as of a date.
//
// A nil set with a nil error means the provider had nothing usable (timeout,
// network error, bad status, malformed body). The only error returned is
// apperrors.ErrConfiguration.
type LiveRateFetcher interface {
	Fetch(ctx context.Context, date time.Time) (*domain.LiveRateSet, error)
}
