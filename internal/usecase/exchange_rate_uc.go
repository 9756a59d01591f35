package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/catalog"
	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
	"telegram-classifieds-bot/internal/domain/ports/repository"
)

// Compile-time check
var _ ExchangeRateUseCase = (*exchangeRateUC)(nil)

// PriceQuote is a price rendered in both currencies at the current rate.
type PriceQuote struct {
	Rub   decimal.Decimal
	Stars int64
	Rate  decimal.Decimal
}

type ExchangeRateUseCase interface {
	// GetCurrentRate returns today's Star/RUB rate: today's row if present,
	// else the most recent prior row, else a rate computed from the fallback
	// reference rate. The result is stable within a calendar day.
	GetCurrentRate(ctx context.Context) (decimal.Decimal, error)
	GetUsdRubRate(ctx context.Context) (decimal.Decimal, error)
	// UpdateRate persists one rate row per day. Idempotent: a second call on
	// the same day reports success without writing.
	UpdateRate(ctx context.Context) (bool, string, error)
	ConvertRubToStars(ctx context.Context, amountRub decimal.Decimal) (int64, error)
	ConvertStarsToRub(ctx context.Context, stars int64) (decimal.Decimal, error)
	PriceInBoth(ctx context.Context, priceRub decimal.Decimal) (PriceQuote, error)
}

type exchangeRateUC struct {
	rates  repository.ExchangeRateRepository
	source adapter.ReferenceRateSource
	cfg    catalog.StarsConfig
	log    *zerolog.Logger
	now    func() time.Time
}

func NewExchangeRateUseCase(rates repository.ExchangeRateRepository, source adapter.ReferenceRateSource, cfg catalog.StarsConfig, logger *zerolog.Logger) *exchangeRateUC {
	l := logger.With().Str("component", "ExchangeRateUC").Logger()
	return &exchangeRateUC{rates: rates, source: source, cfg: cfg, log: &l, now: time.Now}
}

func dateUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (uc *exchangeRateUC) GetCurrentRate(ctx context.Context) (decimal.Decimal, error) {
	today := dateUTC(uc.now())

	if r, err := uc.rates.FindByDate(ctx, nil, today); err == nil {
		return r.StarRub, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, err
	}

	if r, err := uc.rates.FindLatest(ctx, nil); err == nil {
		return r.StarRub, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, err
	}

	return uc.starRate(uc.cfg.FallbackUsdRub), nil
}

func (uc *exchangeRateUC) GetUsdRubRate(ctx context.Context) (decimal.Decimal, error) {
	today := dateUTC(uc.now())

	if r, err := uc.rates.FindByDate(ctx, nil, today); err == nil {
		return r.UsdRub, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, err
	}

	if r, err := uc.rates.FindLatest(ctx, nil); err == nil {
		return r.UsdRub, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, err
	}

	return uc.cfg.FallbackUsdRub, nil
}

func (uc *exchangeRateUC) UpdateRate(ctx context.Context) (bool, string, error) {
	today := dateUTC(uc.now())

	if existing, err := uc.rates.FindByDate(ctx, nil, today); err == nil {
		return true, fmt.Sprintf("курс на %s уже сохранён: %s ₽", today.Format("02.01.2006"), existing.StarRub.StringFixed(4)), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, "", err
	}

	source := "cbr"
	usdRub, err := uc.source.FetchUsdRub(ctx)
	if err != nil {
		// Degrade to yesterday's stored rate, then to the hardcoded default.
		uc.log.Warn().Err(err).Msg("reference rate fetch failed, falling back")
		source = "fallback"
		if prev, perr := uc.rates.FindByDate(ctx, nil, today.AddDate(0, 0, -1)); perr == nil {
			usdRub = prev.UsdRub
		} else {
			usdRub = uc.cfg.FallbackUsdRub
		}
	}

	starRub := uc.starRate(usdRub)
	row := &model.ExchangeRate{
		RateDate: today,
		UsdRub:   usdRub,
		StarRub:  starRub,
		Source:   source,
	}
	if err := uc.rates.Save(ctx, nil, row); err != nil {
		return false, "", err
	}

	uc.log.Info().
		Str("usd_rub", usdRub.StringFixed(4)).
		Str("star_rub", starRub.StringFixed(4)).
		Str("source", source).
		Msg("exchange rate updated")
	return true, fmt.Sprintf("курс обновлён: 1⭐ = %s ₽", starRub.StringFixed(2)), nil
}

// starRate applies the Stars formula with the configured floor, so the rate
// can never reach zero and division by it is always safe.
func (uc *exchangeRateUC) starRate(usdRub decimal.Decimal) decimal.Decimal {
	rate := usdRub.Mul(uc.cfg.UsdMultiplier).Mul(uc.cfg.Discount)
	if rate.LessThan(uc.cfg.MinRateRub) {
		return uc.cfg.MinRateRub
	}
	return rate
}

func (uc *exchangeRateUC) ConvertRubToStars(ctx context.Context, amountRub decimal.Decimal) (int64, error) {
	if amountRub.Sign() <= 0 {
		return 0, nil
	}
	rate, err := uc.GetCurrentRate(ctx)
	if err != nil {
		return 0, err
	}
	stars := amountRub.Div(rate).IntPart()
	if stars < 1 {
		stars = 1
	}
	return stars, nil
}

func (uc *exchangeRateUC) ConvertStarsToRub(ctx context.Context, stars int64) (decimal.Decimal, error) {
	rate, err := uc.GetCurrentRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Mul(decimal.NewFromInt(stars)), nil
}

func (uc *exchangeRateUC) PriceInBoth(ctx context.Context, priceRub decimal.Decimal) (PriceQuote, error) {
	rate, err := uc.GetCurrentRate(ctx)
	if err != nil {
		return PriceQuote{}, err
	}
	stars := priceRub.Div(rate).IntPart()
	if stars < 1 && priceRub.Sign() > 0 {
		stars = 1
	}
	return PriceQuote{Rub: priceRub, Stars: stars, Rate: rate}, nil
}
