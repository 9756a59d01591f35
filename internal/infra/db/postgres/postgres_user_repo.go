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

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

// Money columns are NUMERIC; values cross the driver boundary as text so the
// decimal package keeps exact scale.
const userColumns = `
telegram_id, username, balance_rub::text, balance_stars,
total_spent_rub::text, total_spent_stars, account_tier, account_until,
extra_ads_limit, registered_at, last_active_at`

func (r *PostgresUserRepo) Save(ctx context.Context, qx any, u *model.User) error {
	const q = `
INSERT INTO users (
  telegram_id, username, balance_rub, balance_stars,
  total_spent_rub, total_spent_stars, account_tier, account_until,
  extra_ads_limit, registered_at, last_active_at
) VALUES ($1,$2,$3::numeric,$4,$5::numeric,$6,$7,$8,$9,$10,$11)
ON CONFLICT (telegram_id) DO UPDATE SET
  username=$2, balance_rub=$3::numeric, balance_stars=$4,
  total_spent_rub=$5::numeric, total_spent_stars=$6,
  account_tier=$7, account_until=$8, extra_ads_limit=$9, last_active_at=$11;
`
	return execSQL(ctx, r.pool, qx, q,
		u.TelegramID, u.Username, u.BalanceRub.String(), u.BalanceStars,
		u.TotalSpentRub.String(), u.TotalSpentStars, string(u.AccountTier), u.AccountUntil,
		u.ExtraAdsLimit, u.RegisteredAt, u.LastActiveAt)
}

func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, qx any, tgID int64) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, tgID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *PostgresUserRepo) FindByTelegramIDForUpdate(ctx context.Context, qx any, tgID int64) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE telegram_id=$1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, qx, q, tgID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u          model.User
		balanceRub string
		spentRub   string
		tier       string
	)
	err := row.Scan(&u.TelegramID, &u.Username, &balanceRub, &u.BalanceStars,
		&spentRub, &u.TotalSpentStars, &tier, &u.AccountUntil,
		&u.ExtraAdsLimit, &u.RegisteredAt, &u.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	if u.BalanceRub, err = decimal.NewFromString(balanceRub); err != nil {
		return nil, fmt.Errorf("%w: balance_rub: %v", domain.ErrReadDatabaseRow, err)
	}
	if u.TotalSpentRub, err = decimal.NewFromString(spentRub); err != nil {
		return nil, fmt.Errorf("%w: total_spent_rub: %v", domain.ErrReadDatabaseRow, err)
	}
	u.AccountTier = model.Tier(tier)
	return &u, nil
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, qx any) (int, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT COUNT(*) FROM users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
