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
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ PromocodeUseCase = (*promocodeUC)(nil)

// PromocodeStats is the admin-facing usage summary for one code.
type PromocodeStats struct {
	Code          string
	Type          model.PromocodeType
	UsesCount     int
	MaxUses       int
	TotalDiscount decimal.Decimal
	IsActive      bool
}

type PromocodeUseCase interface {
	// Validate checks a code against all redemption rules without consuming a
	// use. The checks run in a fixed order so the user always sees the most
	// specific rejection first.
	Validate(ctx context.Context, code string, userID int64, amount *decimal.Decimal, serviceCode string) (bool, string, *model.Promocode, error)
	CalculateDiscount(promo *model.Promocode, amount decimal.Decimal) decimal.Decimal
	// Apply consumes one use atomically: re-validates under a row lock,
	// increments counters and records the usage. Bonus codes credit the
	// balance in the same transaction.
	Apply(ctx context.Context, code string, userID int64, amount decimal.Decimal, serviceCode string, paymentID *uuid.UUID) (bool, string, decimal.Decimal, error)
	Create(ctx context.Context, promo *model.Promocode) error
	Deactivate(ctx context.Context, code string) error
	GetStats(ctx context.Context, code string) (*PromocodeStats, error)
	ListActive(ctx context.Context, limit int) ([]*model.Promocode, error)
}

type promocodeUC struct {
	txm     repository.TransactionManager
	promos  repository.PromocodeRepository
	users   repository.UserRepository
	entries repository.TransactionRepository
	cat     *catalog.Catalog
	log     *zerolog.Logger
	now     func() time.Time
}

func NewPromocodeUseCase(
	txm repository.TransactionManager,
	promos repository.PromocodeRepository,
	users repository.UserRepository,
	entries repository.TransactionRepository,
	cat *catalog.Catalog,
	logger *zerolog.Logger,
) *promocodeUC {
	l := logger.With().Str("component", "PromocodeUC").Logger()
	return &promocodeUC{txm: txm, promos: promos, users: users, entries: entries, cat: cat, log: &l, now: time.Now}
}

func (uc *promocodeUC) Validate(ctx context.Context, code string, userID int64, amount *decimal.Decimal, serviceCode string) (bool, string, *model.Promocode, error) {
	promo, err := uc.promos.FindByCode(ctx, nil, model.NormalizeCode(code))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, "Промокод не найден", nil, nil
		}
		return false, "", nil, err
	}
	ok, msg, err := uc.checkRules(ctx, nil, promo, userID, amount, serviceCode)
	if err != nil {
		return false, "", nil, err
	}
	if !ok {
		return false, msg, nil, nil
	}
	return true, "Промокод действителен", promo, nil
}

// checkRules applies the redemption rules in order: active flag, validity
// window, global cap, per-user cap, minimum amount, service allow-list.
func (uc *promocodeUC) checkRules(ctx context.Context, qx repository.Tx, promo *model.Promocode, userID int64, amount *decimal.Decimal, serviceCode string) (bool, string, error) {
	now := uc.now().UTC()
	if !promo.IsActive {
		return false, "Промокод неактивен", nil
	}
	if promo.ValidFrom != nil && now.Before(*promo.ValidFrom) {
		return false, "Промокод ещё не действует", nil
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return false, "Срок действия промокода истёк", nil
	}
	if promo.MaxUses > 0 && promo.UsesCount >= promo.MaxUses {
		return false, "Лимит использований промокода исчерпан", nil
	}
	if promo.MaxUsesPerUser > 0 {
		used, err := uc.promos.CountUsesByUser(ctx, qx, promo.ID, userID)
		if err != nil {
			return false, "", err
		}
		if used >= promo.MaxUsesPerUser {
			return false, "Вы уже использовали этот промокод", nil
		}
	}
	if promo.MinAmount != nil {
		if amount == nil || amount.LessThan(*promo.MinAmount) {
			return false, fmt.Sprintf("Минимальная сумма для промокода: %s ₽", promo.MinAmount.StringFixed(2)), nil
		}
	}
	if !promo.AppliesTo(serviceCode) {
		return false, "Промокод не действует для этой услуги", nil
	}
	return true, "", nil
}

func (uc *promocodeUC) CalculateDiscount(promo *model.Promocode, amount decimal.Decimal) decimal.Decimal {
	switch promo.Type {
	case model.PromoFixedRub:
		if promo.Value.GreaterThan(amount) {
			return amount
		}
		return promo.Value
	case model.PromoPercent:
		return amount.Mul(promo.Value).Div(decimal.NewFromInt(100)).Round(2)
	case model.PromoFreeService:
		// The discount is the catalog list price of the covered service,
		// regardless of what the caller passed as the order amount.
		if svc, err := uc.cat.Service(promo.ServiceCode); err == nil {
			return svc.PriceRub
		}
		return decimal.Zero
	case model.PromoBonusRub, model.PromoBonusStars:
		// Bonus codes credit the balance instead of discounting the purchase.
		return decimal.Zero
	}
	return decimal.Zero
}

// appliedAmount is the value recorded on the usage row and returned to the
// caller: the purchase discount for discount types, the credited value for
// bonus types, the covered service's list price for free-service codes.
func (uc *promocodeUC) appliedAmount(promo *model.Promocode, amount decimal.Decimal) (decimal.Decimal, error) {
	switch promo.Type {
	case model.PromoBonusRub, model.PromoBonusStars:
		return promo.Value, nil
	case model.PromoFreeService:
		svc, err := uc.cat.Service(promo.ServiceCode)
		if err != nil {
			return decimal.Zero, fmt.Errorf("promocode %s covers unknown service %q: %w", promo.Code, promo.ServiceCode, err)
		}
		return svc.PriceRub, nil
	}
	return uc.CalculateDiscount(promo, amount), nil
}

func (uc *promocodeUC) Apply(ctx context.Context, code string, userID int64, amount decimal.Decimal, serviceCode string, paymentID *uuid.UUID) (bool, string, decimal.Decimal, error) {
	var (
		discount decimal.Decimal
		message  string
		rejected bool
	)
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		promo, err := uc.promos.FindByCodeForUpdate(ctx, qx, model.NormalizeCode(code))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				rejected, message = true, "Промокод не найден"
				return domain.ErrOperationFailed
			}
			return err
		}
		ok, msg, err := uc.checkRules(ctx, qx, promo, userID, &amount, serviceCode)
		if err != nil {
			return err
		}
		if !ok {
			rejected, message = true, msg
			return domain.ErrOperationFailed
		}
		// Discount types are meaningless without an order amount; reject
		// before a use is consumed.
		if amount.Sign() <= 0 {
			switch promo.Type {
			case model.PromoPercent:
				rejected, message = true, "Для процентной скидки нужна сумма заказа"
				return domain.ErrOperationFailed
			case model.PromoFixedRub:
				rejected, message = true, "Для применения промокода нужна сумма заказа"
				return domain.ErrOperationFailed
			}
		}

		discount, err = uc.appliedAmount(promo, amount)
		if err != nil {
			return err
		}
		promo.UsesCount++
		promo.TotalDiscount = promo.TotalDiscount.Add(discount)
		if err := uc.promos.Save(ctx, qx, promo); err != nil {
			return err
		}

		usage := &model.PromocodeUsage{
			PromocodeID:    promo.ID,
			UserID:         userID,
			DiscountAmount: discount,
			PaymentID:      paymentID,
			CreatedAt:      uc.now().UTC(),
		}
		if err := uc.promos.SaveUsage(ctx, qx, usage); err != nil {
			return err
		}

		switch promo.Type {
		case model.PromoBonusRub:
			return uc.creditBonus(ctx, qx, userID, model.CurrencyRub, promo.Value, promo.Code)
		case model.PromoBonusStars:
			return uc.creditBonus(ctx, qx, userID, model.CurrencyStars, promo.Value, promo.Code)
		}
		return nil
	})
	if err != nil {
		if rejected {
			return false, message, decimal.Zero, nil
		}
		return false, "", decimal.Zero, err
	}

	uc.log.Info().
		Str("code", model.NormalizeCode(code)).
		Int64("user_id", userID).
		Str("discount", discount.String()).
		Msg("promocode applied")
	return true, "Промокод применён", discount, nil
}

func (uc *promocodeUC) creditBonus(ctx context.Context, qx repository.Tx, userID int64, currency model.Currency, value decimal.Decimal, code string) error {
	if err := lockUser(ctx, qx, userID); err != nil {
		return err
	}
	u, err := uc.users.FindByTelegramIDForUpdate(ctx, qx, userID)
	if err != nil {
		return err
	}
	if currency == model.CurrencyRub {
		u.BalanceRub = u.BalanceRub.Add(value)
	} else {
		u.BalanceStars += value.IntPart()
	}
	if err := uc.users.Save(ctx, qx, u); err != nil {
		return err
	}
	entry := model.NewTransaction(u, model.TransactionBonus, currency, value, fmt.Sprintf("Промокод %s", code))
	return uc.entries.Save(ctx, qx, entry)
}

func (uc *promocodeUC) Create(ctx context.Context, promo *model.Promocode) error {
	promo.Code = model.NormalizeCode(promo.Code)
	if promo.Code == "" || !promo.Type.Valid() {
		return domain.ErrInvalidArgument
	}
	if promo.Type == model.PromoPercent && promo.Value.GreaterThan(decimal.NewFromInt(100)) {
		return domain.ErrInvalidArgument
	}
	if promo.Type != model.PromoFreeService && promo.Value.Sign() <= 0 {
		return domain.ErrInvalidArgument
	}
	if promo.Type == model.PromoFreeService && promo.ServiceCode == "" {
		return domain.ErrInvalidArgument
	}
	if _, err := uc.promos.FindByCode(ctx, nil, promo.Code); err == nil {
		return domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	promo.IsActive = true
	promo.CreatedAt = uc.now().UTC()
	if err := uc.promos.Save(ctx, nil, promo); err != nil {
		return err
	}
	uc.log.Info().Str("code", promo.Code).Str("type", string(promo.Type)).Msg("promocode created")
	return nil
}

func (uc *promocodeUC) Deactivate(ctx context.Context, code string) error {
	promo, err := uc.promos.FindByCode(ctx, nil, model.NormalizeCode(code))
	if err != nil {
		return err
	}
	promo.IsActive = false
	return uc.promos.Save(ctx, nil, promo)
}

func (uc *promocodeUC) GetStats(ctx context.Context, code string) (*PromocodeStats, error) {
	promo, err := uc.promos.FindByCode(ctx, nil, model.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	return &PromocodeStats{
		Code:          promo.Code,
		Type:          promo.Type,
		UsesCount:     promo.UsesCount,
		MaxUses:       promo.MaxUses,
		TotalDiscount: promo.TotalDiscount,
		IsActive:      promo.IsActive,
	}, nil
}

func (uc *promocodeUC) ListActive(ctx context.Context, limit int) ([]*model.Promocode, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.promos.ListActive(ctx, nil, limit)
}
