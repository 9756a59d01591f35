// Package sched runs the periodic sweeps over ads and rates. Each worker
// takes a redis lock per tick so concurrent instances never double-sweep.
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/infra/metrics"
	"telegram-classifieds-bot/internal/infra/redis"
	"telegram-classifieds-bot/internal/usecase"
)

const lockTTL = 5 * time.Minute

// withLock runs fn under a named redis lock, skipping the tick when another
// instance holds it.
func withLock(ctx context.Context, locker redis.Locker, key string, log *zerolog.Logger, fn func(context.Context)) {
	token, err := locker.TryLock(ctx, key, lockTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrLockBusy) {
			log.Error().Err(err).Str("lock", key).Msg("lock acquire failed")
		}
		return
	}
	defer func() {
		if err := locker.Unlock(ctx, key, token); err != nil {
			log.Warn().Err(err).Str("lock", key).Msg("lock release failed")
		}
	}()
	fn(ctx)
}

// ExpiryWorker archives ads whose publication window has passed.
type ExpiryWorker struct {
	interval  time.Duration
	lifecycle usecase.LifecycleUseCase
	locker    redis.Locker
	log       *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, lifecycle usecase.LifecycleUseCase, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, lifecycle: lifecycle, locker: locker, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			withLock(ctx, w.locker, "lock:sweep:expiry", w.log, func(ctx context.Context) {
				n, err := w.lifecycle.ProcessExpiredAds(ctx)
				if err != nil {
					w.log.Error().Err(err).Msg("expiry sweep error")
				}
				if n > 0 {
					metrics.AddAdsExpired(n)
					w.log.Info().Int("count", n).Msg("expired ads archived")
				}
			})
		}
	}
}
