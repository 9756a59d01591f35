package repository

import (
	"context"

	"telegram-classifieds-bot/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, qx any, u *model.User) error
	FindByTelegramID(ctx context.Context, qx any, tgID int64) (*model.User, error)
	// FindByTelegramIDForUpdate locks the row inside a transaction so balance
	// mutations serialize per user.
	FindByTelegramIDForUpdate(ctx context.Context, qx any, tgID int64) (*model.User, error)
	CountUsers(ctx context.Context, qx any) (int, error)
}
