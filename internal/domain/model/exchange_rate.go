package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is one daily rate snapshot. One row per calendar date; StarRub
// is derived from UsdRub and never drops below the configured minimum, so
// division by it is always safe.
type ExchangeRate struct {
	RateDate time.Time // date precision, UTC midnight
	UsdRub   decimal.Decimal
	StarRub  decimal.Decimal
	Source   string
}
