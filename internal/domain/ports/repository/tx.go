package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying transaction handle via `qx`. Keeps use-case
// interfaces clean of storage types; repositories accept `qx any` and detect
// a tx implementation-side. Repositories MUST gracefully accept a nil qx
// (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx Tx) error) error
}
