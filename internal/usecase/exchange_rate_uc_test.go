package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/catalog"
)

func newRateUC(repo *memRateRepo, source *stubRateSource) *exchangeRateUC {
	return NewExchangeRateUseCase(repo, source, catalog.Default().Stars, newTestLogger())
}

func TestExchangeRate_UpdateRate_IdempotentPerDay(t *testing.T) {
	ctx := context.Background()
	repo := newMemRateRepo()
	source := &stubRateSource{rate: decimal.RequireFromString("100")}
	uc := newRateUC(repo, source)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return base }

	ok, _, err := uc.UpdateRate(ctx)
	if err != nil || !ok {
		t.Fatalf("update failed: ok=%v err=%v", ok, err)
	}
	row, err := repo.FindByDate(ctx, nil, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected stored row: %v", err)
	}
	// 100 * 0.013 * 0.9 = 1.17
	if !row.StarRub.Equal(decimal.RequireFromString("1.17")) {
		t.Errorf("expected star rate 1.17, got %s", row.StarRub)
	}
	if row.Source != "cbr" {
		t.Errorf("expected source cbr, got %s", row.Source)
	}

	// Second call on the same day writes nothing, even if the source moved.
	source.rate = decimal.RequireFromString("200")
	ok, _, err = uc.UpdateRate(ctx)
	if err != nil || !ok {
		t.Fatalf("second update failed: ok=%v err=%v", ok, err)
	}
	row, _ = repo.FindByDate(ctx, nil, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	if !row.StarRub.Equal(decimal.RequireFromString("1.17")) {
		t.Errorf("same-day update must not overwrite, got %s", row.StarRub)
	}
}

func TestExchangeRate_UpdateRate_FallsBackOnFetchFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMemRateRepo()
	source := &stubRateSource{rate: decimal.RequireFromString("100")}
	uc := newRateUC(repo, source)
	day1 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return day1 }
	if ok, _, err := uc.UpdateRate(ctx); err != nil || !ok {
		t.Fatalf("seed update failed: err=%v", err)
	}

	// Next day the source is down: yesterday's reference rate is reused.
	source.err = errors.New("connection refused")
	uc.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	ok, _, err := uc.UpdateRate(ctx)
	if err != nil || !ok {
		t.Fatalf("fallback update failed: ok=%v err=%v", ok, err)
	}
	row, err := repo.FindByDate(ctx, nil, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected stored fallback row: %v", err)
	}
	if !row.UsdRub.Equal(decimal.RequireFromString("100")) {
		t.Errorf("expected yesterday's reference rate, got %s", row.UsdRub)
	}
	if row.Source != "fallback" {
		t.Errorf("expected fallback source tag, got %s", row.Source)
	}

	// With no prior row at all, the hardcoded default applies.
	empty := newMemRateRepo()
	uc2 := newRateUC(empty, source)
	uc2.now = func() time.Time { return day1 }
	if ok, _, err := uc2.UpdateRate(ctx); err != nil || !ok {
		t.Fatalf("default fallback failed: err=%v", err)
	}
	row, _ = empty.FindLatest(ctx, nil)
	if !row.UsdRub.Equal(catalog.Default().Stars.FallbackUsdRub) {
		t.Errorf("expected hardcoded default, got %s", row.UsdRub)
	}
}

func TestExchangeRate_GetCurrentRate_StableWithinDay(t *testing.T) {
	ctx := context.Background()
	repo := newMemRateRepo()
	source := &stubRateSource{rate: decimal.RequireFromString("100")}
	uc := newRateUC(repo, source)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return base }
	if ok, _, err := uc.UpdateRate(ctx); err != nil || !ok {
		t.Fatalf("update failed: err=%v", err)
	}

	first, err := uc.GetCurrentRate(ctx)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}

	// Later the same day the source is unreachable; the rate must not move.
	source.err = errors.New("timeout")
	uc.now = func() time.Time { return base.Add(8 * time.Hour) }
	second, err := uc.GetCurrentRate(ctx)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("rate changed within a day: %s then %s", first, second)
	}
}

func TestExchangeRate_GetCurrentRate_FallbackChain(t *testing.T) {
	ctx := context.Background()
	uc := newRateUC(newMemRateRepo(), &stubRateSource{})

	// Empty store: rate computed from the hardcoded default, 90*0.013*0.9.
	rate, err := uc.GetCurrentRate(ctx)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("1.053")) {
		t.Errorf("expected computed fallback 1.053, got %s", rate)
	}
}

func TestExchangeRate_StarRateFloor(t *testing.T) {
	uc := newRateUC(newMemRateRepo(), &stubRateSource{})

	// 10 * 0.013 * 0.9 = 0.117, below the 1.0 floor.
	got := uc.starRate(decimal.RequireFromString("10"))
	if !got.Equal(decimal.RequireFromString("1.0")) {
		t.Errorf("expected floored rate 1.0, got %s", got)
	}
}

func TestExchangeRate_ConvertRubToStars(t *testing.T) {
	ctx := context.Background()
	uc := newRateUC(newMemRateRepo(), &stubRateSource{})

	// Fallback rate 1.053: 100 RUB -> floor(94.96) = 94.
	stars, err := uc.ConvertRubToStars(ctx, decimal.RequireFromString("100"))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if stars != 94 {
		t.Errorf("expected 94 stars, got %d", stars)
	}

	// Tiny positive amounts floor at one star.
	stars, _ = uc.ConvertRubToStars(ctx, decimal.RequireFromString("0.5"))
	if stars != 1 {
		t.Errorf("expected minimum 1 star, got %d", stars)
	}

	// Zero converts to zero.
	stars, _ = uc.ConvertRubToStars(ctx, decimal.Zero)
	if stars != 0 {
		t.Errorf("expected 0 stars for 0 RUB, got %d", stars)
	}
}

func TestExchangeRate_PriceInBoth(t *testing.T) {
	ctx := context.Background()
	uc := newRateUC(newMemRateRepo(), &stubRateSource{})

	quote, err := uc.PriceInBoth(ctx, decimal.RequireFromString("100"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Stars != 94 {
		t.Errorf("expected 94 stars, got %d", quote.Stars)
	}
	if !quote.Rate.Equal(decimal.RequireFromString("1.053")) {
		t.Errorf("unexpected rate %s", quote.Rate)
	}
}
