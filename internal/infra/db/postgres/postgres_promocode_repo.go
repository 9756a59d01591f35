package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

var _ repository.PromocodeRepository = (*PostgresPromocodeRepo)(nil)

type PostgresPromocodeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPromocodeRepo(pool *pgxpool.Pool) *PostgresPromocodeRepo {
	return &PostgresPromocodeRepo{pool: pool}
}

const promoColumns = `
id, code, type, value::text, service_code, max_uses, max_uses_per_user,
min_amount::text, allowed_services, valid_from, valid_until, is_active,
uses_count, total_discount::text, created_by, created_at`

func (r *PostgresPromocodeRepo) Save(ctx context.Context, qx any, p *model.Promocode) error {
	var minAmount *string
	if p.MinAmount != nil {
		s := p.MinAmount.String()
		minAmount = &s
	}

	if p.ID == 0 {
		const q = `
INSERT INTO promocodes (
  code, type, value, service_code, max_uses, max_uses_per_user,
  min_amount, allowed_services, valid_from, valid_until, is_active,
  uses_count, total_discount, created_by, created_at
) VALUES ($1,$2,$3::numeric,$4,$5,$6,$7::numeric,$8,$9,$10,$11,$12,$13::numeric,$14,$15)
RETURNING id;
`
		row, err := pickRow(ctx, r.pool, qx, q,
			p.Code, string(p.Type), p.Value.String(), p.ServiceCode, p.MaxUses, p.MaxUsesPerUser,
			minAmount, p.AllowedServices, p.ValidFrom, p.ValidUntil, p.IsActive,
			p.UsesCount, p.TotalDiscount.String(), p.CreatedBy, p.CreatedAt)
		if err != nil {
			return err
		}
		return row.Scan(&p.ID)
	}

	const q = `
UPDATE promocodes SET
  type=$2, value=$3::numeric, service_code=$4, max_uses=$5, max_uses_per_user=$6,
  min_amount=$7::numeric, allowed_services=$8, valid_from=$9, valid_until=$10,
  is_active=$11, uses_count=$12, total_discount=$13::numeric
WHERE id=$1;
`
	return execSQL(ctx, r.pool, qx, q,
		p.ID, string(p.Type), p.Value.String(), p.ServiceCode, p.MaxUses, p.MaxUsesPerUser,
		minAmount, p.AllowedServices, p.ValidFrom, p.ValidUntil,
		p.IsActive, p.UsesCount, p.TotalDiscount.String())
}

func scanPromocode(row pgx.Row) (*model.Promocode, error) {
	var (
		p         model.Promocode
		pType     string
		value     string
		minAmount *string
		total     string
	)
	err := row.Scan(&p.ID, &p.Code, &pType, &value, &p.ServiceCode, &p.MaxUses, &p.MaxUsesPerUser,
		&minAmount, &p.AllowedServices, &p.ValidFrom, &p.ValidUntil, &p.IsActive,
		&p.UsesCount, &total, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	p.Type = model.PromocodeType(pType)
	if p.Value, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("%w: value: %v", domain.ErrReadDatabaseRow, err)
	}
	if minAmount != nil {
		m, err := decimal.NewFromString(*minAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: min_amount: %v", domain.ErrReadDatabaseRow, err)
		}
		p.MinAmount = &m
	}
	if p.TotalDiscount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("%w: total_discount: %v", domain.ErrReadDatabaseRow, err)
	}
	return &p, nil
}

func (r *PostgresPromocodeRepo) FindByCode(ctx context.Context, qx any, code string) (*model.Promocode, error) {
	q := `SELECT ` + promoColumns + ` FROM promocodes WHERE code=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, code)
	if err != nil {
		return nil, err
	}
	return scanPromocode(row)
}

func (r *PostgresPromocodeRepo) FindByCodeForUpdate(ctx context.Context, qx any, code string) (*model.Promocode, error) {
	q := `SELECT ` + promoColumns + ` FROM promocodes WHERE code=$1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, qx, q, code)
	if err != nil {
		return nil, err
	}
	return scanPromocode(row)
}

func (r *PostgresPromocodeRepo) ListActive(ctx context.Context, qx any, limit int) ([]*model.Promocode, error) {
	q := `SELECT ` + promoColumns + ` FROM promocodes WHERE is_active ORDER BY created_at DESC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, qx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Promocode
	for rows.Next() {
		p, err := scanPromocode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresPromocodeRepo) SaveUsage(ctx context.Context, qx any, u *model.PromocodeUsage) error {
	const q = `
INSERT INTO promocode_usages (promocode_id, user_id, discount_amount, payment_id, created_at)
VALUES ($1,$2,$3::numeric,$4,$5);
`
	return execSQL(ctx, r.pool, qx, q,
		u.PromocodeID, u.UserID, u.DiscountAmount.String(), u.PaymentID, u.CreatedAt)
}

func (r *PostgresPromocodeRepo) CountUsesByUser(ctx context.Context, qx any, promocodeID, userID int64) (int, error) {
	row, err := pickRow(ctx, r.pool, qx,
		`SELECT COUNT(*) FROM promocode_usages WHERE promocode_id=$1 AND user_id=$2;`, promocodeID, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count usages: %w", err)
	}
	return n, nil
}
