package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/infra/metrics"
	"telegram-classifieds-bot/internal/infra/redis"
	"telegram-classifieds-bot/internal/usecase"
)

// BoostWorker republishes ads whose scheduled auto boost is due.
type BoostWorker struct {
	interval  time.Duration
	lifecycle usecase.LifecycleUseCase
	locker    redis.Locker
	log       *zerolog.Logger
}

func NewBoostWorker(interval time.Duration, lifecycle usecase.LifecycleUseCase, locker redis.Locker, logger *zerolog.Logger) *BoostWorker {
	l := logger.With().Str("component", "BoostWorker").Logger()
	return &BoostWorker{interval: interval, lifecycle: lifecycle, locker: locker, log: &l}
}

func (w *BoostWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting boost worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping boost worker")
			return ctx.Err()
		case <-ticker.C:
			withLock(ctx, w.locker, "lock:sweep:boost", w.log, func(ctx context.Context) {
				n, err := w.lifecycle.ProcessAutoBoosts(ctx)
				if err != nil {
					w.log.Error().Err(err).Msg("boost sweep error")
				}
				if n > 0 {
					metrics.AddAdsBoosted(n)
					w.log.Info().Int("count", n).Msg("ads boosted")
				}
			})
		}
	}
}
