package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/infra/metrics"
	"telegram-classifieds-bot/internal/infra/redis"
	"telegram-classifieds-bot/internal/usecase"
)

// RateWorker refreshes the daily exchange rate snapshot.
type RateWorker struct {
	interval time.Duration
	rates    usecase.ExchangeRateUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewRateWorker(interval time.Duration, rates usecase.ExchangeRateUseCase, locker redis.Locker, logger *zerolog.Logger) *RateWorker {
	l := logger.With().Str("component", "RateWorker").Logger()
	return &RateWorker{interval: interval, rates: rates, locker: locker, log: &l}
}

func (w *RateWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting rate worker")

	// First refresh happens immediately so a fresh deployment does not wait
	// a full interval for its first rate.
	withLock(ctx, w.locker, "lock:sweep:rates", w.log, w.refresh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping rate worker")
			return ctx.Err()
		case <-ticker.C:
			withLock(ctx, w.locker, "lock:sweep:rates", w.log, w.refresh)
		}
	}
}

func (w *RateWorker) refresh(ctx context.Context) {
	updated, status, err := w.rates.UpdateRate(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("rate refresh error")
		return
	}
	if updated {
		metrics.IncRateUpdate()
		w.log.Info().Str("status", status).Msg("exchange rate refreshed")
	}
}
