// Package catalog holds the static pricing tables: paid services, account
// tiers, republish rules and the Stars rate constants. Prices change by
// editing this file, not at runtime.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
)

// AccountType describes one purchasable tier.
type AccountType struct {
	Tier         model.Tier
	Name         string
	PriceRub     decimal.Decimal
	DurationDays int
	Limits       model.TierLimits
}

// RepublishConfig prices re-publication from the archive.
type RepublishConfig struct {
	FreeFirstTime bool
	CooldownHours int
	PriceRub      decimal.Decimal
	PriceStars    int64
}

// StarsConfig are the constants of the Stars rate formula:
// star_rub = usd_rub * UsdMultiplier * Discount, floored at MinRateRub.
type StarsConfig struct {
	UsdMultiplier  decimal.Decimal
	Discount       decimal.Decimal
	MinRateRub     decimal.Decimal
	FallbackUsdRub decimal.Decimal
}

// LifecycleConfig are the sweep knobs of the ad state machine.
type LifecycleConfig struct {
	ExpiryWarnDays        []int // day-granularity warning windows, e.g. 3 and 1
	FinalWarnHours        int
	InactiveRetentionDays int
	SweepBatchSize        int
	ExtensionDays         int
}

// Catalog is the full static table set. The zero value is unusable; use
// Default() or build one explicitly in tests.
type Catalog struct {
	Services  map[string]model.Service
	Accounts  map[model.Tier]AccountType
	Republish RepublishConfig
	Stars     StarsConfig
	Lifecycle LifecycleConfig
}

// Service looks up an active or inactive service by exact code.
func (c *Catalog) Service(code string) (model.Service, error) {
	s, ok := c.Services[code]
	if !ok {
		return model.Service{}, domain.ErrServiceNotFound
	}
	return s, nil
}

// Account returns the tier config, falling back to free for unknown tiers.
func (c *Catalog) Account(tier model.Tier) AccountType {
	if a, ok := c.Accounts[tier]; ok {
		return a
	}
	return c.Accounts[model.TierFree]
}

// Limits returns the quota set for a tier.
func (c *Catalog) Limits(tier model.Tier) model.TierLimits {
	return c.Account(tier).Limits
}

func rub(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// Default returns the production catalog.
func Default() *Catalog {
	return &Catalog{
		Services: map[string]model.Service{
			"pin_channel_24h": {
				Code: "pin_channel_24h", Name: "Закрепление в канале на 24 часа",
				PriceRub: rub("100"), Effect: model.EffectPin,
				Duration: 24 * time.Hour, IsActive: true,
			},
			"story_publish": {
				Code: "story_publish", Name: "Публикация в сториз",
				PriceRub: rub("150"), Effect: model.EffectStory,
				Duration: 24 * time.Hour, IsActive: true,
			},
			"badge_urgent": {
				Code: "badge_urgent", Name: "Бейдж «Срочно»",
				PriceRub: rub("49"), Effect: model.EffectUrgentBadge,
				Duration: 7 * 24 * time.Hour, IsActive: true,
			},
			"btn_call": {
				Code: "btn_call", Name: "Кнопка «Позвонить»",
				PriceRub: rub("50"), Effect: model.EffectCallButton, IsActive: true,
			},
			"ad_video": {
				Code: "ad_video", Name: "Видео в объявлении",
				PriceRub: rub("59"), Effect: model.EffectVideoAllowance, IsActive: true,
			},
			"ads_pack_5": {
				Code: "ads_pack_5", Name: "Пакет +5 объявлений",
				PriceRub: rub("199"), Effect: model.EffectAdsPack, AdsCount: 5, IsActive: true,
			},
			"ads_pack_10": {
				Code: "ads_pack_10", Name: "Пакет +10 объявлений",
				PriceRub: rub("349"), Effect: model.EffectAdsPack, AdsCount: 10, IsActive: true,
			},
			"extra_publication": {
				Code: "extra_publication", Name: "Дополнительная публикация",
				PriceRub: rub("10"), Effect: model.EffectExtraPublication, IsActive: true,
			},
			"auto_boost_7d": {
				Code: "auto_boost_7d", Name: "Автоподнятие на неделю",
				PriceRub: rub("129"), Effect: model.EffectAutoBoost,
				BoostCount: 7, BoostIntervalDays: 1, IsActive: true,
			},
			"auto_boost_30d": {
				Code: "auto_boost_30d", Name: "Автоподнятие на месяц",
				PriceRub: rub("399"), Effect: model.EffectAutoBoost,
				BoostCount: 30, BoostIntervalDays: 1, IsActive: true,
			},
		},
		Accounts: map[model.Tier]AccountType{
			model.TierFree: {
				Tier: model.TierFree, Name: "Бесплатный", PriceRub: decimal.Zero,
				Limits: model.TierLimits{
					MaxActiveAds: 10, MaxPublicationsPer30d: 30, AdDurationDays: 30,
					MaxRegionsPerAd: 1, MaxLinksPerAd: 1, MaxPhotosPerAd: 5,
				},
			},
			model.TierPro: {
				Tier: model.TierPro, Name: "PRO", PriceRub: rub("299"), DurationDays: 30,
				Limits: model.TierLimits{
					MaxActiveAds: 30, MaxPublicationsPer30d: 100, AdDurationDays: 45,
					MaxRegionsPerAd: 3, MaxLinksPerAd: 3, MaxPhotosPerAd: 10,
					VideoAllowed: true,
				},
			},
			model.TierBusiness: {
				Tier: model.TierBusiness, Name: "Бизнес", PriceRub: rub("999"), DurationDays: 30,
				Limits: model.TierLimits{
					MaxActiveAds: 1000, MaxPublicationsPer30d: 1000, AdDurationDays: 60,
					MaxRegionsPerAd: 10, MaxLinksPerAd: 10, MaxPhotosPerAd: 10,
					VideoAllowed: true,
				},
			},
		},
		Republish: RepublishConfig{
			FreeFirstTime: true,
			CooldownHours: 24,
			PriceRub:      rub("29"),
			PriceStars:    15,
		},
		Stars: StarsConfig{
			UsdMultiplier:  rub("0.013"),
			Discount:       rub("0.9"),
			MinRateRub:     rub("1.0"),
			FallbackUsdRub: rub("90.0"),
		},
		Lifecycle: LifecycleConfig{
			ExpiryWarnDays:        []int{3, 1},
			FinalWarnHours:        1,
			InactiveRetentionDays: 30,
			SweepBatchSize:        100,
			ExtensionDays:         30,
		},
	}
}
