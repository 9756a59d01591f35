package repository

import (
	"context"
	"time"

	"telegram-classifieds-bot/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, qx any, p *model.Payment) error
	FindByInvID(ctx context.Context, qx any, invID int64) (*model.Payment, error)
	UpdateStatus(ctx context.Context, qx any, invID int64, status model.PaymentStatus, paidAt *time.Time) error
	NextInvID(ctx context.Context, qx any) (int64, error)
}
