package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*PostgresPurchaseRepo)(nil)

type PostgresPurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPurchaseRepo(pool *pgxpool.Pool) *PostgresPurchaseRepo {
	return &PostgresPurchaseRepo{pool: pool}
}

func (r *PostgresPurchaseRepo) Save(ctx context.Context, qx any, p *model.ServicePurchase) error {
	const q = `
INSERT INTO service_purchases (
  id, user_id, ad_id, service_code, quantity, expires_at, is_active, transaction_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET expires_at=$6, is_active=$7;
`
	return execSQL(ctx, r.pool, qx, q,
		p.ID, p.UserID, p.AdID, p.ServiceCode, p.Quantity, p.ExpiresAt, p.IsActive, p.TransactionID, p.CreatedAt)
}

func (r *PostgresPurchaseRepo) FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.ServicePurchase, error) {
	const q = `
SELECT id, user_id, ad_id, service_code, quantity, expires_at, is_active, transaction_id, created_at
  FROM service_purchases WHERE transaction_id=$1;
`
	row, err := pickRow(ctx, r.pool, qx, q, transactionID)
	if err != nil {
		return nil, err
	}
	var p model.ServicePurchase
	err = row.Scan(&p.ID, &p.UserID, &p.AdID, &p.ServiceCode, &p.Quantity, &p.ExpiresAt, &p.IsActive, &p.TransactionID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &p, nil
}

func (r *PostgresPurchaseRepo) Deactivate(ctx context.Context, qx any, id uuid.UUID) error {
	return execSQL(ctx, r.pool, qx, `UPDATE service_purchases SET is_active=false WHERE id=$1;`, id)
}

func (r *PostgresPurchaseRepo) SumActiveQuantity(ctx context.Context, qx any, userID int64, serviceCode string) (int, error) {
	const q = `
SELECT COALESCE(SUM(quantity), 0)
  FROM service_purchases
 WHERE user_id=$1 AND service_code=$2 AND is_active
   AND (expires_at IS NULL OR expires_at > now());
`
	row, err := pickRow(ctx, r.pool, qx, q, userID, serviceCode)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("sum purchases: %w", err)
	}
	return n, nil
}
