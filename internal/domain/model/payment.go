package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one external top-up invoice. InvID is the numeric invoice id the
// gateway echoes back in its callbacks.
type Payment struct {
	ID        uuid.UUID
	InvID     int64
	UserID    int64
	Amount    decimal.Decimal
	Currency  Currency
	Status    PaymentStatus
	CreatedAt time.Time
	PaidAt    *time.Time
}
