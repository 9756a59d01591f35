package repository

import (
	"context"

	"telegram-classifieds-bot/internal/domain/model"
)

type PromocodeRepository interface {
	Save(ctx context.Context, qx any, p *model.Promocode) error
	FindByCode(ctx context.Context, qx any, code string) (*model.Promocode, error)
	// FindByCodeForUpdate locks the row so usage counters cannot race past caps.
	FindByCodeForUpdate(ctx context.Context, qx any, code string) (*model.Promocode, error)
	ListActive(ctx context.Context, qx any, limit int) ([]*model.Promocode, error)

	SaveUsage(ctx context.Context, qx any, u *model.PromocodeUsage) error
	CountUsesByUser(ctx context.Context, qx any, promocodeID, userID int64) (int, error)
}
