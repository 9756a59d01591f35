package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PostgresPaymentRepo)(nil)

type PostgresPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRepo(pool *pgxpool.Pool) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{pool: pool}
}

func (r *PostgresPaymentRepo) Save(ctx context.Context, qx any, p *model.Payment) error {
	const q = `
INSERT INTO payments (id, inv_id, user_id, amount, currency, status, created_at, paid_at)
VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET status=$6, paid_at=$8;
`
	return execSQL(ctx, r.pool, qx, q,
		p.ID, p.InvID, p.UserID, p.Amount.String(), string(p.Currency), string(p.Status), p.CreatedAt, p.PaidAt)
}

func (r *PostgresPaymentRepo) FindByInvID(ctx context.Context, qx any, invID int64) (*model.Payment, error) {
	const q = `
SELECT id, inv_id, user_id, amount::text, currency, status, created_at, paid_at
  FROM payments WHERE inv_id=$1;
`
	row, err := pickRow(ctx, r.pool, qx, q, invID)
	if err != nil {
		return nil, err
	}
	var (
		p        model.Payment
		amount   string
		currency string
		status   string
	)
	err = row.Scan(&p.ID, &p.InvID, &p.UserID, &amount, &currency, &status, &p.CreatedAt, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("%w: amount: %v", domain.ErrReadDatabaseRow, err)
	}
	p.Currency = model.Currency(currency)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func (r *PostgresPaymentRepo) UpdateStatus(ctx context.Context, qx any, invID int64, status model.PaymentStatus, paidAt *time.Time) error {
	return execSQL(ctx, r.pool, qx,
		`UPDATE payments SET status=$2, paid_at=$3 WHERE inv_id=$1;`, invID, string(status), paidAt)
}

// NextInvID draws from a sequence so invoice ids never repeat, which the
// gateway requires.
func (r *PostgresPaymentRepo) NextInvID(ctx context.Context, qx any) (int64, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT nextval('payment_inv_id_seq');`)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("next inv id: %w", err)
	}
	return id, nil
}
