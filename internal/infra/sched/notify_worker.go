package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/infra/metrics"
	"telegram-classifieds-bot/internal/infra/redis"
	"telegram-classifieds-bot/internal/usecase"
)

// NotifyWorker sends expiry warnings at the configured day marks plus a
// final warning shortly before the ad goes down.
type NotifyWorker struct {
	interval   time.Duration
	notifyDays []int
	lifecycle  usecase.LifecycleUseCase
	locker     redis.Locker
	log        *zerolog.Logger
}

func NewNotifyWorker(interval time.Duration, notifyDays []int, lifecycle usecase.LifecycleUseCase, locker redis.Locker, logger *zerolog.Logger) *NotifyWorker {
	l := logger.With().Str("component", "NotifyWorker").Logger()
	return &NotifyWorker{interval: interval, notifyDays: notifyDays, lifecycle: lifecycle, locker: locker, log: &l}
}

func (w *NotifyWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting notify worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping notify worker")
			return ctx.Err()
		case <-ticker.C:
			withLock(ctx, w.locker, "lock:sweep:notify", w.log, w.sweep)
		}
	}
}

func (w *NotifyWorker) sweep(ctx context.Context) {
	for _, days := range w.notifyDays {
		ads, err := w.lifecycle.GetAdsForNotification(ctx, days)
		if err != nil {
			w.log.Error().Err(err).Int("days", days).Msg("notification query error")
			continue
		}
		for _, ad := range ads {
			if err := w.lifecycle.SendExpiryNotification(ctx, ad, days, false); err != nil {
				w.log.Warn().Err(err).Str("ad_id", ad.ID.String()).Msg("expiry notice failed")
				continue
			}
			metrics.IncExpiryNotice(fmt.Sprintf("day_%d", days))
		}
	}

	ads, err := w.lifecycle.GetAdsForFinalNotification(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("final notification query error")
		return
	}
	for _, ad := range ads {
		if err := w.lifecycle.SendExpiryNotification(ctx, ad, 0, true); err != nil {
			w.log.Warn().Err(err).Str("ad_id", ad.ID.String()).Msg("final expiry notice failed")
			continue
		}
		metrics.IncExpiryNotice("hour_1")
	}
}
