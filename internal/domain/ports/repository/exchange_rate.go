package repository

import (
	"context"
	"time"

	"telegram-classifieds-bot/internal/domain/model"
)

type ExchangeRateRepository interface {
	// Save inserts one row per calendar date; an existing date must not be
	// overwritten.
	Save(ctx context.Context, qx any, r *model.ExchangeRate) error
	FindByDate(ctx context.Context, qx any, date time.Time) (*model.ExchangeRate, error)
	FindLatest(ctx context.Context, qx any) (*model.ExchangeRate, error)
}
