package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/catalog"
	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase is the single place balances change. Validation failures come
// back as (false, message) for the caller to render; the error return carries
// infrastructure failures only.
type LedgerUseCase interface {
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal, currency model.Currency, paymentID *uuid.UUID, description string) (*model.Transaction, error)
	Charge(ctx context.Context, userID int64, serviceCode string, currency model.Currency, ad *model.Ad, quantity int, customPrice *decimal.Decimal) (bool, string, *model.Transaction, error)
	Refund(ctx context.Context, userID int64, transactionID, reason string) (bool, string, *model.Transaction, error)
	AddBonus(ctx context.Context, userID int64, amount decimal.Decimal, currency model.Currency, description string) (*model.Transaction, error)
	Subscribe(ctx context.Context, userID int64, tier model.Tier, currency model.Currency) (bool, string, *model.Transaction, error)
	GetTransactions(ctx context.Context, userID int64, limit, offset int, typeFilter *model.TransactionType) ([]*model.Transaction, error)
	CheckCanPurchase(ctx context.Context, userID int64, serviceCode string, currency model.Currency) (bool, string, decimal.Decimal, error)
}

type ledgerUC struct {
	txm       repository.TransactionManager
	users     repository.UserRepository
	entries   repository.TransactionRepository
	purchases repository.PurchaseRepository
	ads       repository.AdRepository
	rates     ExchangeRateUseCase
	cat       *catalog.Catalog
	log       *zerolog.Logger
	now       func() time.Time
}

func NewLedgerUseCase(
	txm repository.TransactionManager,
	users repository.UserRepository,
	entries repository.TransactionRepository,
	purchases repository.PurchaseRepository,
	ads repository.AdRepository,
	rates ExchangeRateUseCase,
	cat *catalog.Catalog,
	logger *zerolog.Logger,
) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{
		txm: txm, users: users, entries: entries, purchases: purchases,
		ads: ads, rates: rates, cat: cat, log: &l, now: time.Now,
	}
}

func hashToInt64(id int64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "user:%d", id)
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// lockUser serializes balance mutations per user with an advisory xact lock.
// A nil or non-pgx executor (in-memory tests) skips the lock.
func lockUser(ctx context.Context, qx repository.Tx, userID int64) error {
	type execer interface {
		Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	}
	if e, ok := qx.(execer); ok {
		_, err := e.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(userID))
		return err
	}
	return nil
}

func (uc *ledgerUC) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, currency model.Currency, paymentID *uuid.UUID, description string) (*model.Transaction, error) {
	if !currency.Valid() {
		return nil, domain.ErrInvalidCurrency
	}
	if description == "" {
		description = "Пополнение баланса"
	}

	var entry *model.Transaction
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		if err := lockUser(ctx, qx, userID); err != nil {
			return err
		}
		u, err := uc.users.FindByTelegramIDForUpdate(ctx, qx, userID)
		if err != nil {
			return err
		}
		uc.credit(u, currency, amount)
		if err := uc.users.Save(ctx, qx, u); err != nil {
			return err
		}
		entry = model.NewTransaction(u, model.TransactionDeposit, currency, amount, description)
		entry.PaymentID = paymentID
		return uc.entries.Save(ctx, qx, entry)
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Int64("user_id", userID).
		Str("amount", amount.String()).
		Str("currency", string(currency)).
		Msg("deposit")
	return entry, nil
}

func (uc *ledgerUC) Charge(ctx context.Context, userID int64, serviceCode string, currency model.Currency, ad *model.Ad, quantity int, customPrice *decimal.Decimal) (bool, string, *model.Transaction, error) {
	svc, err := uc.cat.Service(serviceCode)
	if err != nil {
		return false, "Услуга не найдена", nil, nil
	}
	if !svc.IsActive {
		return false, "Услуга временно недоступна", nil, nil
	}
	if !currency.Valid() {
		return false, fmt.Sprintf("Неизвестная валюта: %s", currency), nil, nil
	}
	if quantity < 1 {
		quantity = 1
	}

	priceRub := svc.Price(quantity)
	if customPrice != nil {
		priceRub = *customPrice
	}
	price, err := uc.priceInCurrency(ctx, priceRub, currency)
	if err != nil {
		return false, "", nil, err
	}

	var entry *model.Transaction
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

		uc.debit(u, currency, price)
		if err := uc.users.Save(ctx, qx, u); err != nil {
			return err
		}

		desc := svc.Name
		if quantity > 1 {
			desc = fmt.Sprintf("%s x%d", svc.Name, quantity)
		}
		entry = model.NewTransaction(u, model.TransactionPurchase, currency, price, desc)
		entry.ServiceCode = serviceCode
		if ad != nil {
			id := ad.ID
			entry.AdID = &id
		}
		if err := uc.entries.Save(ctx, qx, entry); err != nil {
			return err
		}
		return uc.activateService(ctx, qx, u, ad, svc, quantity, entry)
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrInsufficientFunds) {
			if currency == model.CurrencyStars {
				return false, fmt.Sprintf("Недостаточно звёзд. Нужно %d ⭐", price.IntPart()), nil, nil
			}
			return false, fmt.Sprintf("Недостаточно средств. Нужно %s ₽", price.StringFixed(2)), nil, nil
		}
		return false, "", nil, txErr
	}

	uc.log.Info().
		Int64("user_id", userID).
		Str("service", serviceCode).
		Str("price", price.String()).
		Str("currency", string(currency)).
		Msg("charge")
	return true, "Успешно", entry, nil
}

// activateService creates the purchase row and applies the service effect.
// The dispatch is a closed enum: adding a service kind is a compile-time
// visible change here.
func (uc *ledgerUC) activateService(ctx context.Context, qx repository.Tx, u *model.User, ad *model.Ad, svc model.Service, quantity int, entry *model.Transaction) error {
	now := uc.now().UTC()
	var expiresAt *time.Time
	if svc.Duration > 0 {
		e := now.Add(svc.Duration)
		expiresAt = &e
	}

	adTouched := false
	userTouched := false
	switch svc.Effect {
	case model.EffectPin:
		if ad != nil {
			ad.PinnedUntil = expiresAt
			adTouched = true
		}
	case model.EffectStory:
		if ad != nil {
			ad.InStoriesUntil = expiresAt
			adTouched = true
		}
	case model.EffectUrgentBadge:
		if ad != nil {
			ad.UrgentUntil = expiresAt
			adTouched = true
		}
	case model.EffectCallButton:
		if ad != nil {
			ad.CallButton = true
			adTouched = true
		}
	case model.EffectVideoAllowance:
		if ad != nil {
			ad.VideoAllowed = true
			adTouched = true
		}
	case model.EffectAdsPack:
		u.ExtraAdsLimit += svc.AdsCount
		userTouched = true
	case model.EffectExtraPublication:
		// Quota checks sum active purchase rows; nothing to flip here.
	case model.EffectAutoBoost:
		if ad != nil {
			next := now.AddDate(0, 0, svc.BoostIntervalDays)
			ad.BoostService = svc.Code
			ad.BoostRemaining = svc.BoostCount
			ad.NextBoostAt = &next
			adTouched = true
		}
	case model.EffectNone:
	}

	if adTouched {
		if err := uc.ads.Save(ctx, qx, ad); err != nil {
			return err
		}
	}
	if userTouched {
		if err := uc.users.Save(ctx, qx, u); err != nil {
			return err
		}
	}

	purchase := &model.ServicePurchase{
		ID:            uuid.New(),
		UserID:        u.TelegramID,
		ServiceCode:   svc.Code,
		Quantity:      quantity,
		ExpiresAt:     expiresAt,
		IsActive:      true,
		TransactionID: entry.ID,
		CreatedAt:     now,
	}
	if ad != nil {
		id := ad.ID
		purchase.AdID = &id
	}
	return uc.purchases.Save(ctx, qx, purchase)
}

func (uc *ledgerUC) Refund(ctx context.Context, userID int64, transactionID, reason string) (bool, string, *model.Transaction, error) {
	if reason == "" {
		reason = "Возврат средств"
	}

	var refund *model.Transaction
	var notRefundable bool
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		if err := lockUser(ctx, qx, userID); err != nil {
			return err
		}
		orig, err := uc.entries.FindByID(ctx, qx, transactionID)
		if err != nil {
			return err
		}
		if orig.Type != model.TransactionPurchase {
			notRefundable = true
			return domain.ErrNotRefundable
		}
		u, err := uc.users.FindByTelegramIDForUpdate(ctx, qx, userID)
		if err != nil {
			return err
		}

		uc.credit(u, orig.Currency, orig.Amount)
		if orig.Currency == model.CurrencyRub {
			u.TotalSpentRub = u.TotalSpentRub.Sub(orig.Amount)
		} else {
			u.TotalSpentStars -= orig.Amount.IntPart()
		}
		if err := uc.users.Save(ctx, qx, u); err != nil {
			return err
		}

		refund = model.NewTransaction(u, model.TransactionRefund, orig.Currency, orig.Amount, reason)
		refund.ServiceCode = orig.ServiceCode
		refund.AdID = orig.AdID
		if err := uc.entries.Save(ctx, qx, refund); err != nil {
			return err
		}

		if orig.ServiceCode != "" {
			purchase, err := uc.purchases.FindByTransactionID(ctx, qx, orig.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}
			return uc.purchases.Deactivate(ctx, qx, purchase.ID)
		}
		return nil
	})
	if err != nil {
		if notRefundable {
			return false, "Можно вернуть только покупки", nil, nil
		}
		return false, "", nil, err
	}

	uc.log.Info().
		Int64("user_id", userID).
		Str("original_tx", transactionID).
		Msg("refund")
	return true, "Возврат выполнен", refund, nil
}

func (uc *ledgerUC) AddBonus(ctx context.Context, userID int64, amount decimal.Decimal, currency model.Currency, description string) (*model.Transaction, error) {
	if !currency.Valid() {
		return nil, domain.ErrInvalidCurrency
	}
	if description == "" {
		description = "Бонус"
	}

	var entry *model.Transaction
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		if err := lockUser(ctx, qx, userID); err != nil {
			return err
		}
		u, err := uc.users.FindByTelegramIDForUpdate(ctx, qx, userID)
		if err != nil {
			return err
		}
		uc.credit(u, currency, amount)
		if err := uc.users.Save(ctx, qx, u); err != nil {
			return err
		}
		entry = model.NewTransaction(u, model.TransactionBonus, currency, amount, description)
		return uc.entries.Save(ctx, qx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (uc *ledgerUC) Subscribe(ctx context.Context, userID int64, tier model.Tier, currency model.Currency) (bool, string, *model.Transaction, error) {
	if !tier.Valid() {
		return false, "Неизвестный тип аккаунта", nil, nil
	}
	account := uc.cat.Account(tier)
	if account.PriceRub.Sign() == 0 {
		return false, "Этот тип аккаунта бесплатный", nil, nil
	}
	price, err := uc.priceInCurrency(ctx, account.PriceRub, currency)
	if err != nil {
		return false, "", nil, err
	}

	var entry *model.Transaction
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
		uc.debit(u, currency, price)

		now := uc.now().UTC()
		until := now.AddDate(0, 0, account.DurationDays)
		if u.AccountUntil != nil && u.AccountUntil.After(now) {
			// A live subscription extends additively.
			until = u.AccountUntil.AddDate(0, 0, account.DurationDays)
		}
		u.AccountTier = tier
		u.AccountUntil = &until
		if err := uc.users.Save(ctx, qx, u); err != nil {
			return err
		}

		entry = model.NewTransaction(u, model.TransactionSubscription, currency, price,
			fmt.Sprintf("Подписка %s на %d дней", account.Name, account.DurationDays))
		entry.ServiceCode = fmt.Sprintf("subscription_%s", tier)
		return uc.entries.Save(ctx, qx, entry)
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrInsufficientFunds) {
			if currency == model.CurrencyStars {
				return false, fmt.Sprintf("Недостаточно звёзд. Нужно %d ⭐", price.IntPart()), nil, nil
			}
			return false, fmt.Sprintf("Недостаточно средств. Нужно %s ₽", price.StringFixed(2)), nil, nil
		}
		return false, "", nil, txErr
	}

	uc.log.Info().Int64("user_id", userID).Str("tier", string(tier)).Msg("subscription purchased")
	return true, "Подписка оформлена", entry, nil
}

func (uc *ledgerUC) GetTransactions(ctx context.Context, userID int64, limit, offset int, typeFilter *model.TransactionType) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return uc.entries.ListByUser(ctx, nil, userID, limit, offset, typeFilter)
}

func (uc *ledgerUC) CheckCanPurchase(ctx context.Context, userID int64, serviceCode string, currency model.Currency) (bool, string, decimal.Decimal, error) {
	svc, err := uc.cat.Service(serviceCode)
	if err != nil {
		return false, "Услуга не найдена", decimal.Zero, nil
	}
	if !svc.IsActive {
		return false, "Услуга временно недоступна", decimal.Zero, nil
	}
	price, err := uc.priceInCurrency(ctx, svc.PriceRub, currency)
	if err != nil {
		return false, "", decimal.Zero, err
	}
	u, err := uc.users.FindByTelegramID(ctx, nil, userID)
	if err != nil {
		return false, "", decimal.Zero, err
	}
	if u.Balance(currency).LessThan(price) {
		if currency == model.CurrencyStars {
			return false, fmt.Sprintf("Недостаточно звёзд (%d ⭐)", u.BalanceStars), price, nil
		}
		return false, fmt.Sprintf("Недостаточно средств (%s ₽)", u.BalanceRub.StringFixed(2)), price, nil
	}
	return true, "OK", price, nil
}

// priceInCurrency converts a RUB list price into the charge currency. Stars
// conversion rounds down and is floored at one star.
func (uc *ledgerUC) priceInCurrency(ctx context.Context, priceRub decimal.Decimal, currency model.Currency) (decimal.Decimal, error) {
	if currency != model.CurrencyStars {
		return priceRub, nil
	}
	stars, err := uc.rates.ConvertRubToStars(ctx, priceRub)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(stars), nil
}

func (uc *ledgerUC) credit(u *model.User, currency model.Currency, amount decimal.Decimal) {
	if currency == model.CurrencyRub {
		u.BalanceRub = u.BalanceRub.Add(amount)
	} else {
		u.BalanceStars += amount.IntPart()
	}
}

func (uc *ledgerUC) debit(u *model.User, currency model.Currency, amount decimal.Decimal) {
	if currency == model.CurrencyRub {
		u.BalanceRub = u.BalanceRub.Sub(amount)
		u.TotalSpentRub = u.TotalSpentRub.Add(amount)
	} else {
		u.BalanceStars -= amount.IntPart()
		u.TotalSpentStars += amount.IntPart()
	}
}
