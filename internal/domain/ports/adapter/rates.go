package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReferenceRateSource fetches the external USD reference rate. A failed fetch
// returns an error; the caller falls back to stored or default rates.
type ReferenceRateSource interface {
	FetchUsdRub(ctx context.Context) (decimal.Decimal, error)
}
