package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceEffect is the closed set of things a paid service can do. Adding a
// service kind means adding a variant here and a case to the ledger dispatch;
// the compiler keeps the two in sync.
type ServiceEffect int

const (
	EffectNone ServiceEffect = iota
	EffectPin
	EffectStory
	EffectUrgentBadge
	EffectCallButton
	EffectVideoAllowance
	EffectAdsPack
	EffectExtraPublication
	EffectAutoBoost
)

// Service is one entry of the static paid-service catalog.
type Service struct {
	Code              string
	Name              string
	PriceRub          decimal.Decimal
	Effect            ServiceEffect
	Duration          time.Duration // zero if the effect has no expiry
	AdsCount          int           // for EffectAdsPack
	BoostCount        int           // for EffectAutoBoost
	BoostIntervalDays int           // for EffectAutoBoost
	IsActive          bool
}

// Price returns the unit price multiplied by quantity.
func (s Service) Price(quantity int) decimal.Decimal {
	if quantity <= 1 {
		return s.PriceRub
	}
	return s.PriceRub.Mul(decimal.NewFromInt(int64(quantity)))
}
