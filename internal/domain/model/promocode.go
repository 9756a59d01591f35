package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PromocodeType string

const (
	PromoFixedRub    PromocodeType = "fixed_rub"
	PromoPercent     PromocodeType = "percent"
	PromoBonusRub    PromocodeType = "bonus_rub"
	PromoBonusStars  PromocodeType = "bonus_stars"
	PromoFreeService PromocodeType = "free_service"
)

func (t PromocodeType) Valid() bool {
	switch t {
	case PromoFixedRub, PromoPercent, PromoBonusRub, PromoBonusStars, PromoFreeService:
		return true
	}
	return false
}

// Promocode is an administrative discount rule. Codes are stored upper-case.
type Promocode struct {
	ID              int64
	Code            string
	Type            PromocodeType
	Value           decimal.Decimal
	ServiceCode     string // for free_service type
	MaxUses         int    // 0 = unlimited
	MaxUsesPerUser  int
	MinAmount       *decimal.Decimal
	AllowedServices []string
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	IsActive        bool
	UsesCount       int
	TotalDiscount   decimal.Decimal
	CreatedBy       int64
	CreatedAt       time.Time
}

// AppliesTo reports whether the code is restricted away from serviceCode.
// An empty allow-list means no restriction.
func (p *Promocode) AppliesTo(serviceCode string) bool {
	if len(p.AllowedServices) == 0 || serviceCode == "" {
		return true
	}
	for _, s := range p.AllowedServices {
		if s == serviceCode {
			return true
		}
	}
	return false
}

// NormalizeCode uppercases and trims a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PromocodeUsage links one application of a promocode to a user. Append-only;
// used to enforce per-user caps.
type PromocodeUsage struct {
	ID             int64
	PromocodeID    int64
	UserID         int64
	DiscountAmount decimal.Decimal
	PaymentID      *uuid.UUID
	CreatedAt      time.Time
}
