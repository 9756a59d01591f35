package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/infra/metrics"
	"telegram-classifieds-bot/internal/infra/redis"
	"telegram-classifieds-bot/internal/usecase"
)

// CleanupWorker moves long-archived ads into the deleted state.
type CleanupWorker struct {
	interval  time.Duration
	lifecycle usecase.LifecycleUseCase
	locker    redis.Locker
	log       *zerolog.Logger
}

func NewCleanupWorker(interval time.Duration, lifecycle usecase.LifecycleUseCase, locker redis.Locker, logger *zerolog.Logger) *CleanupWorker {
	l := logger.With().Str("component", "CleanupWorker").Logger()
	return &CleanupWorker{interval: interval, lifecycle: lifecycle, locker: locker, log: &l}
}

func (w *CleanupWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting cleanup worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping cleanup worker")
			return ctx.Err()
		case <-ticker.C:
			withLock(ctx, w.locker, "lock:sweep:cleanup", w.log, func(ctx context.Context) {
				n, err := w.lifecycle.MoveInactiveToDeleted(ctx)
				if err != nil {
					w.log.Error().Err(err).Msg("cleanup sweep error")
				}
				if n > 0 {
					metrics.AddAdsDeleted(n)
					w.log.Info().Int("count", n).Msg("archived ads deleted by retention")
				}
			})
		}
	}
}
