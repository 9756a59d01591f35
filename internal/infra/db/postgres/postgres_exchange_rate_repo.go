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

var _ repository.ExchangeRateRepository = (*PostgresExchangeRateRepo)(nil)

type PostgresExchangeRateRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresExchangeRateRepo(pool *pgxpool.Pool) *PostgresExchangeRateRepo {
	return &PostgresExchangeRateRepo{pool: pool}
}

// Save inserts one row per calendar day. A second write for the same date is
// rejected, never merged: the first rate of the day wins.
func (r *PostgresExchangeRateRepo) Save(ctx context.Context, qx any, e *model.ExchangeRate) error {
	const q = `
INSERT INTO exchange_rates (rate_date, usd_rub, star_rub, source)
VALUES ($1,$2::numeric,$3::numeric,$4)
ON CONFLICT (rate_date) DO NOTHING;
`
	return execSQL(ctx, r.pool, qx, q,
		e.RateDate, e.UsdRub.String(), e.StarRub.String(), e.Source)
}

func scanRate(row pgx.Row) (*model.ExchangeRate, error) {
	var (
		e       model.ExchangeRate
		usdRub  string
		starRub string
	)
	if err := row.Scan(&e.RateDate, &usdRub, &starRub, &e.Source); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	var err error
	if e.UsdRub, err = decimal.NewFromString(usdRub); err != nil {
		return nil, fmt.Errorf("%w: usd_rub: %v", domain.ErrReadDatabaseRow, err)
	}
	if e.StarRub, err = decimal.NewFromString(starRub); err != nil {
		return nil, fmt.Errorf("%w: star_rub: %v", domain.ErrReadDatabaseRow, err)
	}
	return &e, nil
}

func (r *PostgresExchangeRateRepo) FindByDate(ctx context.Context, qx any, date time.Time) (*model.ExchangeRate, error) {
	row, err := pickRow(ctx, r.pool, qx,
		`SELECT rate_date, usd_rub::text, star_rub::text, source FROM exchange_rates WHERE rate_date=$1;`, date)
	if err != nil {
		return nil, err
	}
	return scanRate(row)
}

func (r *PostgresExchangeRateRepo) FindLatest(ctx context.Context, qx any) (*model.ExchangeRate, error) {
	row, err := pickRow(ctx, r.pool, qx,
		`SELECT rate_date, usd_rub::text, star_rub::text, source FROM exchange_rates ORDER BY rate_date DESC LIMIT 1;`)
	if err != nil {
		return nil, err
	}
	return scanRate(row)
}
