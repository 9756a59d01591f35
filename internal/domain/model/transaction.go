package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit      TransactionType = "deposit"
	TransactionPurchase     TransactionType = "purchase"
	TransactionRefund       TransactionType = "refund"
	TransactionBonus        TransactionType = "bonus"
	TransactionSubscription TransactionType = "subscription"
)

// Transaction is one append-only ledger entry. The post-mutation balances are
// stored as a snapshot, not derived, so history stays readable after refunds.
// Entries are immutable once created; a refund is a new offsetting entry.
type Transaction struct {
	ID                string // ULID, sortable by creation time
	UserID            int64
	Type              TransactionType
	Currency          Currency
	Amount            decimal.Decimal
	BalanceRubAfter   decimal.Decimal
	BalanceStarsAfter int64
	AdID              *uuid.UUID
	ServiceCode       string
	PaymentID         *uuid.UUID
	Description       string
	CreatedAt         time.Time
}

// NewTransaction snapshots the user's balances after the mutation.
func NewTransaction(u *User, txType TransactionType, currency Currency, amount decimal.Decimal, description string) *Transaction {
	return &Transaction{
		ID:                ulid.Make().String(),
		UserID:            u.TelegramID,
		Type:              txType,
		Currency:          currency,
		Amount:            amount,
		BalanceRubAfter:   u.BalanceRub,
		BalanceStarsAfter: u.BalanceStars,
		Description:       description,
		CreatedAt:         time.Now().UTC(),
	}
}
