package repository

import (
	"context"

	"github.com/google/uuid"

	"telegram-classifieds-bot/internal/domain/model"
)

type PurchaseRepository interface {
	Save(ctx context.Context, qx any, p *model.ServicePurchase) error
	FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.ServicePurchase, error)
	Deactivate(ctx context.Context, qx any, id uuid.UUID) error
	// SumActiveQuantity totals active purchases of one service for a user,
	// used by the publication-quota check.
	SumActiveQuantity(ctx context.Context, qx any, userID int64, serviceCode string) (int, error)
}
