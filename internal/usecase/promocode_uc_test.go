package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/catalog"
	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
)

type promoDeps struct {
	promos  *memPromoRepo
	users   *memUserRepo
	entries *memTransactionRepo
	uc      *promocodeUC
}

func newPromoDeps() *promoDeps {
	d := &promoDeps{
		promos:  newMemPromoRepo(),
		users:   newMemUserRepo(),
		entries: newMemTransactionRepo(),
	}
	d.uc = NewPromocodeUseCase(&memTxManager{}, d.promos, d.users, d.entries, catalog.Default(), newTestLogger())
	return d
}

func seedPromo(t *testing.T, d *promoDeps, p *model.Promocode) {
	t.Helper()
	p.Code = model.NormalizeCode(p.Code)
	p.IsActive = true
	if err := d.promos.Save(context.Background(), nil, p); err != nil {
		t.Fatalf("seed promo: %v", err)
	}
}

func TestPromocode_Validate_ChecksInOrder(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	min := decimal.NewFromInt(500)

	cases := []struct {
		name    string
		promo   *model.Promocode
		code    string
		amount  *decimal.Decimal
		service string
		wantMsg string
	}{
		{
			name:    "unknown code",
			code:    "NOPE",
			wantMsg: "Промокод не найден",
		},
		{
			name:    "inactive",
			promo:   &model.Promocode{Code: "A", Type: model.PromoPercent, Value: decimal.NewFromInt(10)},
			code:    "A",
			wantMsg: "Промокод неактивен",
		},
		{
			name:    "not yet valid",
			promo:   &model.Promocode{Code: "B", Type: model.PromoPercent, Value: decimal.NewFromInt(10), ValidFrom: &future},
			code:    "B",
			wantMsg: "Промокод ещё не действует",
		},
		{
			name:    "expired",
			promo:   &model.Promocode{Code: "C", Type: model.PromoPercent, Value: decimal.NewFromInt(10), ValidUntil: &past},
			code:    "C",
			wantMsg: "Срок действия промокода истёк",
		},
		{
			name:    "global cap exhausted",
			promo:   &model.Promocode{Code: "D", Type: model.PromoPercent, Value: decimal.NewFromInt(10), MaxUses: 3, UsesCount: 3},
			code:    "D",
			wantMsg: "Лимит использований промокода исчерпан",
		},
		{
			name:    "below minimum",
			promo:   &model.Promocode{Code: "E", Type: model.PromoPercent, Value: decimal.NewFromInt(10), MinAmount: &min},
			code:    "E",
			amount:  decPtr("100"),
			wantMsg: "Минимальная сумма для промокода: 500.00 ₽",
		},
		{
			name:    "service not allowed",
			promo:   &model.Promocode{Code: "F", Type: model.PromoPercent, Value: decimal.NewFromInt(10), AllowedServices: []string{"pin_channel_24h"}},
			code:    "F",
			service: "badge_urgent",
			wantMsg: "Промокод не действует для этой услуги",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newPromoDeps()
			if tc.promo != nil {
				active := tc.name != "inactive"
				seedPromo(t, d, tc.promo)
				if !active {
					p, _ := d.promos.FindByCode(ctx, nil, tc.promo.Code)
					p.IsActive = false
					_ = d.promos.Save(ctx, nil, p)
				}
			}
			ok, msg, _, err := d.uc.Validate(ctx, tc.code, 100, tc.amount, tc.service)
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if ok {
				t.Fatal("expected validation failure")
			}
			if msg != tc.wantMsg {
				t.Errorf("expected %q, got %q", tc.wantMsg, msg)
			}
		})
	}
}

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestPromocode_Validate_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	seedPromo(t, d, &model.Promocode{Code: "SAVE50", Type: model.PromoPercent, Value: decimal.NewFromInt(50)})

	ok, _, promo, err := d.uc.Validate(ctx, "  save50 ", 100, nil, "")
	if err != nil || !ok {
		t.Fatalf("expected valid, got ok=%v err=%v", ok, err)
	}
	if promo.Code != "SAVE50" {
		t.Errorf("expected normalized code, got %q", promo.Code)
	}
}

func TestPromocode_CalculateDiscount(t *testing.T) {
	d := newPromoDeps()
	amount := decimal.NewFromInt(200)

	fixed := &model.Promocode{Type: model.PromoFixedRub, Value: decimal.NewFromInt(300)}
	if got := d.uc.CalculateDiscount(fixed, amount); !got.Equal(amount) {
		t.Errorf("fixed discount must be capped at amount, got %s", got)
	}

	percent := &model.Promocode{Type: model.PromoPercent, Value: decimal.NewFromInt(50)}
	if got := d.uc.CalculateDiscount(percent, amount); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected 100, got %s", got)
	}

	bonus := &model.Promocode{Type: model.PromoBonusRub, Value: decimal.NewFromInt(100)}
	if got := d.uc.CalculateDiscount(bonus, amount); !got.IsZero() {
		t.Errorf("bonus codes give no purchase discount, got %s", got)
	}

	free := &model.Promocode{Type: model.PromoFreeService, ServiceCode: "pin_channel_24h"}
	if got := d.uc.CalculateDiscount(free, decimal.Zero); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("free-service discount must be the list price 100, got %s", got)
	}
}

func TestPromocode_Apply_Save50Scenario(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	seedPromo(t, d, &model.Promocode{
		Code: "SAVE50", Type: model.PromoPercent, Value: decimal.NewFromInt(50),
		MaxUses: 1, MaxUsesPerUser: 1,
	})

	ok, _, discount, err := d.uc.Apply(ctx, "SAVE50", 100, decimal.NewFromInt(200), "", nil)
	if err != nil || !ok {
		t.Fatalf("apply failed: ok=%v err=%v", ok, err)
	}
	if !discount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected discount 100, got %s", discount)
	}

	p, _ := d.promos.FindByCode(ctx, nil, "SAVE50")
	if p.UsesCount != 1 {
		t.Errorf("expected uses count 1, got %d", p.UsesCount)
	}
	if !p.TotalDiscount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total discount 100, got %s", p.TotalDiscount)
	}

	ok, msg, _, err := d.uc.Apply(ctx, "SAVE50", 100, decimal.NewFromInt(200), "", nil)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if ok {
		t.Fatal("expected second apply to be rejected")
	}
	if msg != "Лимит использований промокода исчерпан" && msg != "Вы уже использовали этот промокод" {
		t.Errorf("unexpected rejection message: %q", msg)
	}
}

func TestPromocode_Apply_PerUserCap(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	seedPromo(t, d, &model.Promocode{
		Code: "MULTI", Type: model.PromoPercent, Value: decimal.NewFromInt(10),
		MaxUsesPerUser: 1,
	})

	if ok, _, _, _ := d.uc.Apply(ctx, "MULTI", 1, decimal.NewFromInt(100), "", nil); !ok {
		t.Fatal("first user apply should pass")
	}
	if ok, _, _, _ := d.uc.Apply(ctx, "MULTI", 2, decimal.NewFromInt(100), "", nil); !ok {
		t.Fatal("second user apply should pass")
	}
	ok, msg, _, _ := d.uc.Apply(ctx, "MULTI", 1, decimal.NewFromInt(100), "", nil)
	if ok {
		t.Fatal("repeat apply by same user should fail")
	}
	if msg != "Вы уже использовали этот промокод" {
		t.Errorf("unexpected message: %q", msg)
	}

	p, _ := d.promos.FindByCode(ctx, nil, "MULTI")
	if p.UsesCount != 2 {
		t.Errorf("expected 2 uses, got %d", p.UsesCount)
	}
}

func TestPromocode_Apply_BonusCreditsBalance(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	u, _ := model.NewUser(100, "tester")
	_ = d.users.Save(ctx, nil, u)
	seedPromo(t, d, &model.Promocode{
		Code: "GIFT", Type: model.PromoBonusRub, Value: decimal.NewFromInt(50),
	})

	ok, _, credited, err := d.uc.Apply(ctx, "GIFT", 100, decimal.Zero, "", nil)
	if err != nil || !ok {
		t.Fatalf("apply failed: ok=%v err=%v", ok, err)
	}
	if !credited.Equal(decimal.NewFromInt(50)) {
		t.Errorf("apply must return the credited amount, got %s", credited)
	}
	saved, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if !saved.BalanceRub.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected bonus credited, balance %s", saved.BalanceRub)
	}
	if d.entries.count() != 1 {
		t.Errorf("expected one bonus ledger entry, got %d", d.entries.count())
	}

	// The credited value shows up in the usage row and the stats.
	if len(d.promos.usages) != 1 || !d.promos.usages[0].DiscountAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("usage must record the credited amount, got %+v", d.promos.usages)
	}
	stats, err := d.uc.GetStats(ctx, "GIFT")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !stats.TotalDiscount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected total discount 50, got %s", stats.TotalDiscount)
	}
}

func TestPromocode_Apply_FreeServiceReturnsListPrice(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	seedPromo(t, d, &model.Promocode{
		Code: "FREEPIN", Type: model.PromoFreeService, ServiceCode: "pin_channel_24h",
		AllowedServices: []string{"pin_channel_24h"},
	})

	ok, _, discount, err := d.uc.Apply(ctx, "FREEPIN", 100, decimal.Zero, "pin_channel_24h", nil)
	if err != nil || !ok {
		t.Fatalf("apply failed: ok=%v err=%v", ok, err)
	}
	if !discount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected the catalog list price 100, got %s", discount)
	}
	p, _ := d.promos.FindByCode(ctx, nil, "FREEPIN")
	if p.UsesCount != 1 {
		t.Errorf("expected one use consumed, got %d", p.UsesCount)
	}
	if !p.TotalDiscount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total discount 100, got %s", p.TotalDiscount)
	}
}

func TestPromocode_Apply_FreeServiceUnknownCodeErrors(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	seedPromo(t, d, &model.Promocode{
		Code: "GHOST", Type: model.PromoFreeService, ServiceCode: "no_such_service",
	})

	ok, _, _, err := d.uc.Apply(ctx, "GHOST", 100, decimal.Zero, "", nil)
	if err == nil || ok {
		t.Fatalf("expected error for unknown covered service, got ok=%v err=%v", ok, err)
	}
	p, _ := d.promos.FindByCode(ctx, nil, "GHOST")
	if p.UsesCount != 0 {
		t.Errorf("failed apply must not consume a use, got %d", p.UsesCount)
	}
}

func TestPromocode_Apply_DiscountTypesRequireAmount(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	seedPromo(t, d, &model.Promocode{Code: "PCT", Type: model.PromoPercent, Value: decimal.NewFromInt(10)})
	seedPromo(t, d, &model.Promocode{Code: "FIX", Type: model.PromoFixedRub, Value: decimal.NewFromInt(30)})

	ok, msg, _, err := d.uc.Apply(ctx, "PCT", 100, decimal.Zero, "", nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if ok {
		t.Fatal("percent code with zero amount must be rejected")
	}
	if msg != "Для процентной скидки нужна сумма заказа" {
		t.Errorf("unexpected message: %q", msg)
	}

	if ok, _, _, _ := d.uc.Apply(ctx, "FIX", 100, decimal.Zero, "", nil); ok {
		t.Fatal("fixed code with zero amount must be rejected")
	}

	for _, code := range []string{"PCT", "FIX"} {
		p, _ := d.promos.FindByCode(ctx, nil, code)
		if p.UsesCount != 0 {
			t.Errorf("%s: rejection must not consume a use, got %d", code, p.UsesCount)
		}
	}
}

func TestPromocode_Create_RejectsDuplicatesAndBadValues(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()

	promo := &model.Promocode{Code: "twice", Type: model.PromoFixedRub, Value: decimal.NewFromInt(10)}
	if err := d.uc.Create(ctx, promo); err != nil {
		t.Fatalf("create: %v", err)
	}
	if promo.Code != "TWICE" {
		t.Errorf("expected uppercased code, got %q", promo.Code)
	}

	dup := &model.Promocode{Code: "TWICE", Type: model.PromoFixedRub, Value: decimal.NewFromInt(10)}
	if err := d.uc.Create(ctx, dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	over := &model.Promocode{Code: "OVER", Type: model.PromoPercent, Value: decimal.NewFromInt(150)}
	if err := d.uc.Create(ctx, over); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for >100%%, got %v", err)
	}
}

func TestPromocode_GetStats(t *testing.T) {
	ctx := context.Background()
	d := newPromoDeps()
	seedPromo(t, d, &model.Promocode{
		Code: "STATS", Type: model.PromoPercent, Value: decimal.NewFromInt(20), MaxUses: 10,
	})
	_, _, _, _ = d.uc.Apply(ctx, "STATS", 1, decimal.NewFromInt(100), "", nil)

	stats, err := d.uc.GetStats(ctx, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.UsesCount != 1 || stats.MaxUses != 10 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !stats.TotalDiscount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected total discount 20, got %s", stats.TotalDiscount)
	}
}
