package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/captionmyart/captiond/internal/repository"
)

// pollInterval is how often the polled gauges are refreshed from the database.
const pollInterval = 1 * time.Minute

// Worker periodically refreshes gauges that are cheaper to poll than to keep
// in lockstep with every request.
type Worker struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewWorker creates a metrics polling worker.
func NewWorker(queries *repository.Queries, logger *slog.Logger) *Worker {
	return &Worker{
		queries: queries,
		logger:  logger,
	}
}

// Run polls until the context is cancelled. Call it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *Worker) refresh(ctx context.Context) {
	if subs, err := w.queries.CountActiveSubscriptions(ctx); err != nil {
		w.logger.Error("Failed to poll active subscriptions", "error", err)
	} else {
		ActiveSubscriptions.Set(float64(subs))
	}

	since := time.Now().Add(-24 * time.Hour)
	if generations, err := w.queries.CountGenerationsSince(ctx, since); err != nil {
		w.logger.Error("Failed to poll recent generations", "error", err)
	} else {
		GenerationsLast24h.Set(float64(generations))
	}
}
