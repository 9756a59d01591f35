package repository

import (
	"context"

	"telegram-classifieds-bot/internal/domain/model"
)

type TransactionRepository interface {
	// Save appends one ledger entry. Entries are never updated or deleted.
	Save(ctx context.Context, qx any, tx *model.Transaction) error
	FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error)
	// ListByUser returns history newest first, optionally filtered by type.
	ListByUser(ctx context.Context, qx any, userID int64, limit, offset int, typeFilter *model.TransactionType) ([]*model.Transaction, error)
}
