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

var _ repository.TransactionRepository = (*PostgresTransactionRepo)(nil)

// PostgresTransactionRepo stores the append-only ledger. There is no update
// path on purpose.
type PostgresTransactionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTransactionRepo(pool *pgxpool.Pool) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{pool: pool}
}

const transactionColumns = `
id, user_id, type, currency, amount::text, balance_rub_after::text,
balance_stars_after, ad_id, service_code, payment_id, description, created_at`

func (r *PostgresTransactionRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, user_id, type, currency, amount, balance_rub_after,
  balance_stars_after, ad_id, service_code, payment_id, description, created_at
) VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric,$7,$8,$9,$10,$11,$12);
`
	return execSQL(ctx, r.pool, qx, q,
		t.ID, t.UserID, string(t.Type), string(t.Currency), t.Amount.String(), t.BalanceRubAfter.String(),
		t.BalanceStarsAfter, t.AdID, t.ServiceCode, t.PaymentID, t.Description, t.CreatedAt)
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t        model.Transaction
		txType   string
		currency string
		amount   string
		rubAfter string
	)
	err := row.Scan(&t.ID, &t.UserID, &txType, &currency, &amount, &rubAfter,
		&t.BalanceStarsAfter, &t.AdID, &t.ServiceCode, &t.PaymentID, &t.Description, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	t.Type = model.TransactionType(txType)
	t.Currency = model.Currency(currency)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("%w: amount: %v", domain.ErrReadDatabaseRow, err)
	}
	if t.BalanceRubAfter, err = decimal.NewFromString(rubAfter); err != nil {
		return nil, fmt.Errorf("%w: balance_rub_after: %v", domain.ErrReadDatabaseRow, err)
	}
	return &t, nil
}

func (r *PostgresTransactionRepo) FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *PostgresTransactionRepo) ListByUser(ctx context.Context, qx any, userID int64, limit, offset int, typeFilter *model.TransactionType) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + `
  FROM transactions
 WHERE user_id=$1 AND ($2::text IS NULL OR type=$2)
 ORDER BY created_at DESC, id DESC
 LIMIT $3 OFFSET $4;`
	var filter *string
	if typeFilter != nil {
		s := string(*typeFilter)
		filter = &s
	}
	rows, err := queryRows(ctx, r.pool, qx, q, userID, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
