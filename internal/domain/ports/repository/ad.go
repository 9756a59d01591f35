package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"telegram-classifieds-bot/internal/domain/model"
)

type AdRepository interface {
	Save(ctx context.Context, qx any, ad *model.Ad) error
	FindByID(ctx context.Context, qx any, id uuid.UUID) (*model.Ad, error)
	CountByOwnerAndStatus(ctx context.Context, qx any, ownerID int64, statuses []model.AdStatus) (int, error)
	CountCreatedSince(ctx context.Context, qx any, ownerID int64, since time.Time) (int, error)

	// Sweep queries. All are bounded and only return rows still matching the
	// precondition, so duplicate sweep runs find nothing left to act on.
	FindExpired(ctx context.Context, qx any, now time.Time, limit int) ([]*model.Ad, error)
	FindDueForBoost(ctx context.Context, qx any, now time.Time, limit int) ([]*model.Ad, error)
	FindExpiringBetween(ctx context.Context, qx any, from, to time.Time) ([]*model.Ad, error)
	FindInactiveOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.Ad, error)
}
