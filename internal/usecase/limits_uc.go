package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/catalog"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ LimitsUseCase = (*limitsUC)(nil)

// AccountInfo is the quota summary shown in the account screen.
type AccountInfo struct {
	Tier              model.Tier
	TierName          string
	AccountUntil      *time.Time
	ActiveAds         int
	MaxActiveAds      int
	PublishedLast30d  int
	MaxPublications   int
	ExtraAdsLimit     int
	AdDurationDays    int
	VideoAllowed      bool
}

// LimitsUseCase answers quota questions from the tier table plus the user's
// purchased extras. Read-only; an expired paid tier counts as free.
type LimitsUseCase interface {
	CanCreateAd(ctx context.Context, userID int64) (bool, string, error)
	CanPublishAd(ctx context.Context, userID int64) (bool, string, error)
	AdDurationDays(ctx context.Context, userID int64) (int, error)
	GetAccountInfo(ctx context.Context, userID int64) (*AccountInfo, error)
}

type limitsUC struct {
	users     repository.UserRepository
	ads       repository.AdRepository
	purchases repository.PurchaseRepository
	cat       *catalog.Catalog
	log       *zerolog.Logger
	now       func() time.Time
}

func NewLimitsUseCase(
	users repository.UserRepository,
	ads repository.AdRepository,
	purchases repository.PurchaseRepository,
	cat *catalog.Catalog,
	logger *zerolog.Logger,
) *limitsUC {
	l := logger.With().Str("component", "LimitsUC").Logger()
	return &limitsUC{users: users, ads: ads, purchases: purchases, cat: cat, log: &l, now: time.Now}
}

// CanCreateAd checks the active-ads cap: tier limit plus purchased ad packs.
func (uc *limitsUC) CanCreateAd(ctx context.Context, userID int64) (bool, string, error) {
	u, err := uc.users.FindByTelegramID(ctx, nil, userID)
	if err != nil {
		return false, "", err
	}
	limits := uc.cat.Limits(u.EffectiveTier(uc.now().UTC()))
	max := limits.MaxActiveAds + u.ExtraAdsLimit

	active, err := uc.ads.CountByOwnerAndStatus(ctx, nil, userID,
		[]model.AdStatus{model.AdStatusActive, model.AdStatusPending})
	if err != nil {
		return false, "", err
	}
	if active >= max {
		return false, fmt.Sprintf("Достигнут лимит активных объявлений (%d). Купите пакет объявлений или повысьте тариф.", max), nil
	}
	return true, "", nil
}

// CanPublishAd checks the rolling 30-day publication cap: tier limit plus
// active extra-publication purchases.
func (uc *limitsUC) CanPublishAd(ctx context.Context, userID int64) (bool, string, error) {
	u, err := uc.users.FindByTelegramID(ctx, nil, userID)
	if err != nil {
		return false, "", err
	}
	now := uc.now().UTC()
	limits := uc.cat.Limits(u.EffectiveTier(now))

	extra, err := uc.purchases.SumActiveQuantity(ctx, nil, userID, "extra_publication")
	if err != nil {
		return false, "", err
	}
	max := limits.MaxPublicationsPer30d + extra

	published, err := uc.ads.CountCreatedSince(ctx, nil, userID, now.AddDate(0, 0, -30))
	if err != nil {
		return false, "", err
	}
	if published >= max {
		return false, fmt.Sprintf("Достигнут лимит публикаций за 30 дней (%d).", max), nil
	}
	return true, "", nil
}

func (uc *limitsUC) AdDurationDays(ctx context.Context, userID int64) (int, error) {
	u, err := uc.users.FindByTelegramID(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	return uc.cat.Limits(u.EffectiveTier(uc.now().UTC())).AdDurationDays, nil
}

func (uc *limitsUC) GetAccountInfo(ctx context.Context, userID int64) (*AccountInfo, error) {
	u, err := uc.users.FindByTelegramID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	now := uc.now().UTC()
	tier := u.EffectiveTier(now)
	account := uc.cat.Account(tier)

	active, err := uc.ads.CountByOwnerAndStatus(ctx, nil, userID,
		[]model.AdStatus{model.AdStatusActive, model.AdStatusPending})
	if err != nil {
		return nil, err
	}
	published, err := uc.ads.CountCreatedSince(ctx, nil, userID, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	return &AccountInfo{
		Tier:             tier,
		TierName:         account.Name,
		AccountUntil:     u.AccountUntil,
		ActiveAds:        active,
		MaxActiveAds:     account.Limits.MaxActiveAds + u.ExtraAdsLimit,
		PublishedLast30d: published,
		MaxPublications:  account.Limits.MaxPublicationsPer30d,
		ExtraAdsLimit:    u.ExtraAdsLimit,
		AdDurationDays:   account.Limits.AdDurationDays,
		VideoAllowed:     account.Limits.VideoAllowed,
	}, nil
}
