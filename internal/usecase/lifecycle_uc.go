package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/catalog"
	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ LifecycleUseCase = (*lifecycleUC)(nil)

// LifecycleUseCase drives the ad state machine:
// PENDING -> ACTIVE -> {INACTIVE, ARCHIVED} -> DELETED.
// User-facing failures come back as (false, message); the error return is for
// storage failures only. Channel I/O failures degrade to (false, message) too.
type LifecycleUseCase interface {
	Extend(ctx context.Context, adID uuid.UUID) (bool, string, error)
	MoveToArchive(ctx context.Context, adID uuid.UUID) (bool, string, error)
	RepublishFromArchive(ctx context.Context, adID uuid.UUID, userID int64, currency model.Currency) (bool, string, error)
	Boost(ctx context.Context, adID uuid.UUID) (bool, string, error)

	GetAdsForNotification(ctx context.Context, daysBefore int) ([]*model.Ad, error)
	GetAdsForFinalNotification(ctx context.Context) ([]*model.Ad, error)
	SendExpiryNotification(ctx context.Context, ad *model.Ad, daysLeft int, isFinal bool) error

	ProcessExpiredAds(ctx context.Context) (int, error)
	ProcessAutoBoosts(ctx context.Context) (int, error)
	MoveInactiveToDeleted(ctx context.Context) (int, error)

	IsRepublishFree(ad *model.Ad) bool
}

type lifecycleUC struct {
	txm        repository.TransactionManager
	ads        repository.AdRepository
	users      repository.UserRepository
	entries    repository.TransactionRepository
	publisher  adapter.ChannelPublisher
	notifier   adapter.TelegramNotifier
	classifier adapter.ContentClassifier
	cat        *catalog.Catalog
	log        *zerolog.Logger
	now        func() time.Time
}

func NewLifecycleUseCase(
	txm repository.TransactionManager,
	ads repository.AdRepository,
	users repository.UserRepository,
	entries repository.TransactionRepository,
	publisher adapter.ChannelPublisher,
	notifier adapter.TelegramNotifier,
	classifier adapter.ContentClassifier,
	cat *catalog.Catalog,
	logger *zerolog.Logger,
) *lifecycleUC {
	l := logger.With().Str("component", "LifecycleUC").Logger()
	return &lifecycleUC{
		txm: txm, ads: ads, users: users, entries: entries,
		publisher: publisher, notifier: notifier, classifier: classifier,
		cat: cat, log: &l, now: time.Now,
	}
}

// deleteChannelCopies removes every published copy, best effort. Deleting an
// already-deleted message is a no-op inside the publisher.
func (uc *lifecycleUC) deleteChannelCopies(ctx context.Context, ad *model.Ad) {
	for channelID, messageIDs := range ad.ChannelMessageIDs {
		for _, mid := range messageIDs {
			if !uc.publisher.DeleteMessage(ctx, channelID, mid) {
				uc.log.Debug().
					Str("ad_id", ad.ID.String()).
					Str("channel", channelID).
					Int("message_id", mid).
					Msg("channel message delete skipped")
			}
		}
	}
}

func (uc *lifecycleUC) Extend(ctx context.Context, adID uuid.UUID) (bool, string, error) {
	ad, err := uc.ads.FindByID(ctx, nil, adID)
	if err != nil {
		return false, "", err
	}
	if ad.Status != model.AdStatusActive {
		return false, "Объявление не активно", nil
	}
	if !uc.publisher.HasChannels(ad.Region) {
		return false, "Каналы для региона не настроены", nil
	}

	// Delete-then-republish ordering: a publish failure after the deletes
	// leaves the ad without channel presence until the next extend attempt.
	uc.deleteChannelCopies(ctx, ad)
	messages, err := uc.publisher.Publish(ctx, ad)
	if err != nil {
		uc.log.Error().Err(err).Str("ad_id", adID.String()).Msg("republish failed during extend")
		return false, "Не удалось опубликовать объявление", nil
	}

	now := uc.now().UTC()
	expires := now.AddDate(0, 0, uc.cat.Lifecycle.ExtensionDays)
	ad.ChannelMessageIDs = messages
	ad.PublishedAt = &now
	ad.ExpiresAt = &expires
	ad.LastExtendedAt = &now
	ad.UpdatedAt = now
	ad.ClearNotifications()
	if err := uc.ads.Save(ctx, nil, ad); err != nil {
		return false, "", err
	}

	uc.log.Info().Str("ad_id", adID.String()).Time("expires_at", expires).Msg("ad extended")
	return true, fmt.Sprintf("Объявление продлено до %s", expires.Format("02.01.2006")), nil
}

func (uc *lifecycleUC) MoveToArchive(ctx context.Context, adID uuid.UUID) (bool, string, error) {
	ad, err := uc.ads.FindByID(ctx, nil, adID)
	if err != nil {
		return false, "", err
	}
	return uc.archive(ctx, ad)
}

func (uc *lifecycleUC) archive(ctx context.Context, ad *model.Ad) (bool, string, error) {
	if ad.Status == model.AdStatusDeleted {
		return false, "Объявление удалено", nil
	}

	uc.deleteChannelCopies(ctx, ad)

	now := uc.now().UTC()
	ad.Status = model.AdStatusInactive
	ad.ChannelMessageIDs = map[string][]int{}
	ad.ExpiresAt = nil
	ad.ArchivedAt = &now
	ad.UpdatedAt = now
	ad.ClearNotifications()
	if err := uc.ads.Save(ctx, nil, ad); err != nil {
		return false, "", err
	}

	uc.log.Info().Str("ad_id", ad.ID.String()).Msg("ad archived")
	return true, "Объявление снято с публикации", nil
}

func (uc *lifecycleUC) IsRepublishFree(ad *model.Ad) bool {
	return uc.cat.Republish.FreeFirstTime && ad.RepublishCount == 0
}

func (uc *lifecycleUC) RepublishFromArchive(ctx context.Context, adID uuid.UUID, userID int64, currency model.Currency) (bool, string, error) {
	ad, err := uc.ads.FindByID(ctx, nil, adID)
	if err != nil {
		return false, "", err
	}
	if !ad.Republishable() {
		return false, "Объявление нельзя опубликовать повторно", nil
	}
	if !uc.publisher.HasChannels(ad.Region) {
		return false, "Каналы для региона не настроены", nil
	}

	now := uc.now().UTC()
	if ad.LastRepublishedAt != nil {
		cooldown := time.Duration(uc.cat.Republish.CooldownHours) * time.Hour
		if elapsed := now.Sub(*ad.LastRepublishedAt); elapsed < cooldown {
			left := cooldown - elapsed
			hours := int(left.Hours()) + 1
			return false, fmt.Sprintf("Повторная публикация будет доступна через %d ч", hours), nil
		}
	}

	// Archived content is re-checked before it goes back into the channels.
	verdict, err := uc.classifier.Classify(ctx, ad.Title+"\n"+ad.Description, ad.Category)
	if err != nil {
		uc.log.Warn().Err(err).Str("ad_id", adID.String()).Msg("republish moderation check failed")
		return false, "Не удалось проверить объявление, попробуйте позже", nil
	}
	if !verdict.IsSafe {
		uc.log.Info().
			Str("ad_id", adID.String()).
			Str("category", verdict.Category).
			Msg("republish blocked by moderation")
		return false, "Объявление не прошло модерацию", nil
	}

	user, err := uc.users.FindByTelegramID(ctx, nil, userID)
	if err != nil {
		return false, "", err
	}
	if !uc.IsRepublishFree(ad) {
		ok, msg, err := uc.chargeRepublish(ctx, userID, ad, currency)
		if err != nil || !ok {
			return ok, msg, err
		}
	}

	messages, err := uc.publisher.Publish(ctx, ad)
	if err != nil {
		uc.log.Error().Err(err).Str("ad_id", adID.String()).Msg("republish failed")
		return false, "Не удалось опубликовать объявление", nil
	}

	durationDays := uc.cat.Limits(user.EffectiveTier(now)).AdDurationDays
	expires := now.AddDate(0, 0, durationDays)
	ad.Status = model.AdStatusActive
	ad.ChannelMessageIDs = messages
	ad.PublishedAt = &now
	ad.ExpiresAt = &expires
	ad.RepublishCount++
	ad.LastRepublishedAt = &now
	ad.ArchivedAt = nil
	ad.DeletedAt = nil
	ad.UpdatedAt = now
	ad.ClearNotifications()
	if err := uc.ads.Save(ctx, nil, ad); err != nil {
		return false, "", err
	}

	uc.log.Info().
		Str("ad_id", adID.String()).
		Int("republish_count", ad.RepublishCount).
		Msg("ad republished")
	return true, "Объявление опубликовано", nil
}

// chargeRepublish debits the fixed republish price. Republication is priced
// from config, not the service catalog, so it has its own charge path.
func (uc *lifecycleUC) chargeRepublish(ctx context.Context, userID int64, ad *model.Ad, currency model.Currency) (bool, string, error) {
	if !currency.Valid() {
		return false, fmt.Sprintf("Неизвестная валюта: %s", currency), nil
	}
	price := uc.cat.Republish.PriceRub
	if currency == model.CurrencyStars {
		price = decimal.NewFromInt(uc.cat.Republish.PriceStars)
	}

	txErr := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		if err := lockUser(ctx, qx, userID); err != nil {
			return err
		}
		u, err := uc.users.FindByTelegramIDForUpdate(ctx, qx, userID)
		if err != nil {
			return err
		}
		if u.Balance(currency).LessThan(price) {
			return domain.ErrInsufficientFunds
		}
		if currency == model.CurrencyRub {
			u.BalanceRub = u.BalanceRub.Sub(price)
			u.TotalSpentRub = u.TotalSpentRub.Add(price)
		} else {
			u.BalanceStars -= price.IntPart()
			u.TotalSpentStars += price.IntPart()
		}
		if err := uc.users.Save(ctx, qx, u); err != nil {
			return err
		}
		entry := model.NewTransaction(u, model.TransactionPurchase, currency, price, "Повторная публикация")
		entry.ServiceCode = "republish"
		id := ad.ID
		entry.AdID = &id
		return uc.entries.Save(ctx, qx, entry)
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrInsufficientFunds) {
			if currency == model.CurrencyStars {
				return false, fmt.Sprintf("Недостаточно звёзд. Нужно %d ⭐", price.IntPart()), nil
			}
			return false, fmt.Sprintf("Недостаточно средств. Нужно %s ₽", price.StringFixed(2)), nil
		}
		return false, "", txErr
	}
	return true, "", nil
}

func (uc *lifecycleUC) Boost(ctx context.Context, adID uuid.UUID) (bool, string, error) {
	ad, err := uc.ads.FindByID(ctx, nil, adID)
	if err != nil {
		return false, "", err
	}
	return uc.boost(ctx, ad)
}

func (uc *lifecycleUC) boost(ctx context.Context, ad *model.Ad) (bool, string, error) {
	if ad.Status != model.AdStatusActive {
		return false, "Объявление не активно", nil
	}
	if !uc.publisher.HasChannels(ad.Region) {
		return false, "Каналы для региона не настроены", nil
	}

	uc.deleteChannelCopies(ctx, ad)
	messages, err := uc.publisher.Publish(ctx, ad)
	if err != nil {
		uc.log.Error().Err(err).Str("ad_id", ad.ID.String()).Msg("republish failed during boost")
		return false, "Не удалось поднять объявление", nil
	}

	now := uc.now().UTC()
	ad.ChannelMessageIDs = messages
	ad.PublishedAt = &now
	ad.UpdatedAt = now

	if ad.BoostRemaining > 0 {
		ad.BoostRemaining--
	}
	if ad.BoostRemaining > 0 && ad.BoostService != "" {
		if svc, err := uc.cat.Service(ad.BoostService); err == nil && svc.BoostIntervalDays > 0 {
			next := now.AddDate(0, 0, svc.BoostIntervalDays)
			ad.NextBoostAt = &next
		} else {
			ad.BoostService = ""
			ad.BoostRemaining = 0
			ad.NextBoostAt = nil
		}
	} else {
		ad.BoostService = ""
		ad.NextBoostAt = nil
	}

	if err := uc.ads.Save(ctx, nil, ad); err != nil {
		return false, "", err
	}
	uc.log.Info().
		Str("ad_id", ad.ID.String()).
		Int("boosts_left", ad.BoostRemaining).
		Msg("ad boosted")
	return true, "Объявление поднято", nil
}

func (uc *lifecycleUC) GetAdsForNotification(ctx context.Context, daysBefore int) ([]*model.Ad, error) {
	now := uc.now().UTC()
	from := now.Add(time.Duration(daysBefore) * 24 * time.Hour)
	to := from.Add(24 * time.Hour)
	candidates, err := uc.ads.FindExpiringBetween(ctx, nil, from, to)
	if err != nil {
		return nil, err
	}
	key := model.NotificationKeyForDays(daysBefore)
	out := candidates[:0]
	for _, ad := range candidates {
		if ad.Status == model.AdStatusActive && !ad.NotificationSent(key) {
			out = append(out, ad)
		}
	}
	return out, nil
}

func (uc *lifecycleUC) GetAdsForFinalNotification(ctx context.Context) ([]*model.Ad, error) {
	now := uc.now().UTC()
	to := now.Add(time.Duration(uc.cat.Lifecycle.FinalWarnHours) * time.Hour)
	candidates, err := uc.ads.FindExpiringBetween(ctx, nil, now, to)
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, ad := range candidates {
		if ad.Status == model.AdStatusActive && !ad.NotificationSent(model.NotifyHour1) {
			out = append(out, ad)
		}
	}
	return out, nil
}

// SendExpiryNotification messages the owner with Extend/Archive actions. The
// sent flag is set only after a successful send, so a delivery failure is
// retried by the next sweep within the same window.
func (uc *lifecycleUC) SendExpiryNotification(ctx context.Context, ad *model.Ad, daysLeft int, isFinal bool) error {
	var text string
	key := model.NotificationKeyForDays(daysLeft)
	if isFinal {
		key = model.NotifyHour1
		text = fmt.Sprintf("⏰ Объявление «%s» истекает менее чем через час!\nПродлите публикацию или снимите объявление.", ad.Title)
	} else {
		text = fmt.Sprintf("Объявление «%s» истекает через %s.\nПродлите публикацию или снимите объявление.", ad.Title, daysWord(daysLeft))
	}

	rows := [][]adapter.InlineButton{
		{
			{Text: "Продлить", Data: fmt.Sprintf("ad_extend:%s", ad.ID)},
			{Text: "В архив", Data: fmt.Sprintf("ad_archive:%s", ad.ID)},
		},
	}
	if err := uc.notifier.SendButtons(ctx, ad.OwnerID, text, rows); err != nil {
		uc.log.Warn().Err(err).
			Str("ad_id", ad.ID.String()).
			Int64("owner_id", ad.OwnerID).
			Msg("expiry notification delivery failed")
		return err
	}

	ad.MarkNotificationSent(key)
	ad.UpdatedAt = uc.now().UTC()
	return uc.ads.Save(ctx, nil, ad)
}

func daysWord(n int) string {
	switch {
	case n%10 == 1 && n%100 != 11:
		return fmt.Sprintf("%d день", n)
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 10 || n%100 >= 20):
		return fmt.Sprintf("%d дня", n)
	default:
		return fmt.Sprintf("%d дней", n)
	}
}

// ProcessExpiredAds archives every ACTIVE ad whose expiry passed. Bounded per
// call; safe to re-run because archived ads no longer match the query.
func (uc *lifecycleUC) ProcessExpiredAds(ctx context.Context) (int, error) {
	now := uc.now().UTC()
	expired, err := uc.ads.FindExpired(ctx, nil, now, uc.cat.Lifecycle.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, ad := range expired {
		ok, _, err := uc.archive(ctx, ad)
		if err != nil {
			uc.log.Error().Err(err).Str("ad_id", ad.ID.String()).Msg("expired ad archive failed")
			continue
		}
		if !ok {
			continue
		}
		processed++
		text := fmt.Sprintf("Срок публикации объявления «%s» истёк. Оно перемещено в архив.", ad.Title)
		if err := uc.notifier.SendMessage(ctx, ad.OwnerID, text); err != nil {
			uc.log.Debug().Err(err).Int64("owner_id", ad.OwnerID).Msg("expiry notice delivery failed")
		}
	}
	if processed > 0 {
		uc.log.Info().Int("count", processed).Msg("expired ads archived")
	}
	return processed, nil
}

func (uc *lifecycleUC) ProcessAutoBoosts(ctx context.Context) (int, error) {
	now := uc.now().UTC()
	due, err := uc.ads.FindDueForBoost(ctx, nil, now, uc.cat.Lifecycle.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, ad := range due {
		ok, _, err := uc.boost(ctx, ad)
		if err != nil {
			uc.log.Error().Err(err).Str("ad_id", ad.ID.String()).Msg("auto boost failed")
			continue
		}
		if ok {
			processed++
		}
	}
	if processed > 0 {
		uc.log.Info().Int("count", processed).Msg("auto boosts applied")
	}
	return processed, nil
}

// MoveInactiveToDeleted hard-deletes ads past the retention window.
func (uc *lifecycleUC) MoveInactiveToDeleted(ctx context.Context) (int, error) {
	now := uc.now().UTC()
	cutoff := now.AddDate(0, 0, -uc.cat.Lifecycle.InactiveRetentionDays)
	stale, err := uc.ads.FindInactiveOlderThan(ctx, nil, cutoff, uc.cat.Lifecycle.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, ad := range stale {
		ad.Status = model.AdStatusDeleted
		ad.DeletedAt = &now
		ad.UpdatedAt = now
		if err := uc.ads.Save(ctx, nil, ad); err != nil {
			uc.log.Error().Err(err).Str("ad_id", ad.ID.String()).Msg("hard delete failed")
			continue
		}
		processed++
	}
	if processed > 0 {
		uc.log.Info().Int("count", processed).Msg("inactive ads hard deleted")
	}
	return processed, nil
}
