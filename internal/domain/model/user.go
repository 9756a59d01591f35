package model

import (
	"time"

	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
)

// Currency codes accepted by the ledger.
type Currency string

const (
	CurrencyRub   Currency = "RUB"
	CurrencyStars Currency = "XTR"
)

func (c Currency) Valid() bool { return c == CurrencyRub || c == CurrencyStars }

// User is a domain entity representing a Telegram user. The two balances are
// independent: RUB is a decimal amount, Stars are whole units.
type User struct {
	TelegramID      int64
	Username        string
	BalanceRub      decimal.Decimal
	BalanceStars    int64
	TotalSpentRub   decimal.Decimal
	TotalSpentStars int64
	AccountTier     Tier
	AccountUntil    *time.Time
	ExtraAdsLimit   int
	RegisteredAt    time.Time
	LastActiveAt    time.Time
}

func NewUser(tgID int64, username string) (*User, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &User{
		TelegramID:   tgID,
		Username:     username,
		AccountTier:  TierFree,
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.TelegramID == 0 }
func (u *User) Touch()       { u.LastActiveAt = time.Now().UTC() }

// EffectiveTier treats an expired paid tier as free without requiring a write.
func (u *User) EffectiveTier(now time.Time) Tier {
	if u.AccountTier == TierFree {
		return TierFree
	}
	if u.AccountUntil != nil && u.AccountUntil.Before(now) {
		return TierFree
	}
	return u.AccountTier
}

// Balance returns the balance in the given currency as a decimal.
func (u *User) Balance(c Currency) decimal.Decimal {
	if c == CurrencyRub {
		return u.BalanceRub
	}
	return decimal.NewFromInt(u.BalanceStars)
}
