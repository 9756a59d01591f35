package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/catalog"
	"telegram-classifieds-bot/internal/domain/model"
)

type ledgerDeps struct {
	users     *memUserRepo
	entries   *memTransactionRepo
	purchases *memPurchaseRepo
	ads       *memAdRepo
	rates     *memRateRepo
	cat       *catalog.Catalog
	uc        *ledgerUC
}

func newLedgerDeps() *ledgerDeps {
	d := &ledgerDeps{
		users:     newMemUserRepo(),
		entries:   newMemTransactionRepo(),
		purchases: newMemPurchaseRepo(),
		ads:       newMemAdRepo(),
		rates:     newMemRateRepo(),
		cat:       catalog.Default(),
	}
	rateUC := NewExchangeRateUseCase(d.rates, &stubRateSource{rate: decimal.RequireFromString("90")}, d.cat.Stars, newTestLogger())
	d.uc = NewLedgerUseCase(&memTxManager{}, d.users, d.entries, d.purchases, d.ads, rateUC, d.cat, newTestLogger())
	return d
}

func seedUser(t *testing.T, users *memUserRepo, tgID int64, rub string, stars int64) *model.User {
	t.Helper()
	u, err := model.NewUser(tgID, "tester")
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	u.BalanceRub = decimal.RequireFromString(rub)
	u.BalanceStars = stars
	if err := users.Save(context.Background(), nil, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestLedger_Deposit(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "50", 0)

	entry, err := d.uc.Deposit(ctx, 100, decimal.RequireFromString("150"), model.CurrencyRub, nil, "")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if entry.Type != model.TransactionDeposit {
		t.Errorf("expected deposit type, got %s", entry.Type)
	}
	u, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if !u.BalanceRub.Equal(decimal.RequireFromString("200")) {
		t.Errorf("expected balance 200, got %s", u.BalanceRub)
	}
	if !entry.BalanceRubAfter.Equal(u.BalanceRub) {
		t.Errorf("snapshot mismatch: %s vs %s", entry.BalanceRubAfter, u.BalanceRub)
	}

	if _, err := d.uc.Deposit(ctx, 100, decimal.NewFromInt(1), model.Currency("EUR"), nil, ""); err == nil {
		t.Error("expected InvalidCurrency for EUR deposit")
	}
}

func TestLedger_Charge_InsufficientFundsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "0", 0)

	ok, msg, entry, err := d.uc.Charge(ctx, 100, "pin_channel_24h", model.CurrencyRub, nil, 1, nil)
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if ok {
		t.Fatal("expected charge to fail on empty balance")
	}
	if msg != "Недостаточно средств. Нужно 100.00 ₽" {
		t.Errorf("unexpected message: %q", msg)
	}
	if entry != nil {
		t.Error("expected no transaction on failed charge")
	}
	u, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if !u.BalanceRub.IsZero() || u.BalanceStars != 0 {
		t.Errorf("balance mutated on failed charge: %s / %d", u.BalanceRub, u.BalanceStars)
	}
	if d.entries.count() != 0 {
		t.Errorf("expected empty ledger, got %d entries", d.entries.count())
	}
}

func TestLedger_Charge_PinService(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "500", 0)
	ad, _ := model.NewAd(100, "moscow", "auto", "Продам колёса", "")
	ad.Status = model.AdStatusActive
	_ = d.ads.Save(ctx, nil, ad)

	ok, _, entry, err := d.uc.Charge(ctx, 100, "pin_channel_24h", model.CurrencyRub, ad, 1, nil)
	if err != nil || !ok {
		t.Fatalf("charge failed: ok=%v err=%v", ok, err)
	}

	u, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if !u.BalanceRub.Equal(decimal.RequireFromString("400")) {
		t.Errorf("expected balance 400, got %s", u.BalanceRub)
	}
	if !u.TotalSpentRub.Equal(decimal.RequireFromString("100")) {
		t.Errorf("expected total spent 100, got %s", u.TotalSpentRub)
	}

	saved, _ := d.ads.FindByID(ctx, nil, ad.ID)
	if saved.PinnedUntil == nil {
		t.Fatal("expected PinnedUntil to be set")
	}

	purchase, err := d.purchases.FindByTransactionID(ctx, nil, entry.ID)
	if err != nil {
		t.Fatalf("expected purchase row linked to transaction: %v", err)
	}
	if !purchase.IsActive || purchase.ServiceCode != "pin_channel_24h" {
		t.Errorf("unexpected purchase row: %+v", purchase)
	}
}

func TestLedger_Charge_AdsPackExtendsQuota(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "500", 0)

	ok, _, _, err := d.uc.Charge(ctx, 100, "ads_pack_5", model.CurrencyRub, nil, 1, nil)
	if err != nil || !ok {
		t.Fatalf("charge failed: ok=%v err=%v", ok, err)
	}
	u, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if u.ExtraAdsLimit != 5 {
		t.Errorf("expected extra ads limit 5, got %d", u.ExtraAdsLimit)
	}
}

func TestLedger_Charge_InStars(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "0", 200)

	// star rate = 90 * 0.013 * 0.9 = 1.053; 100 RUB -> floor(94.96) = 94 stars.
	ok, _, entry, err := d.uc.Charge(ctx, 100, "pin_channel_24h", model.CurrencyStars, nil, 1, nil)
	if err != nil || !ok {
		t.Fatalf("charge failed: ok=%v err=%v", ok, err)
	}
	if entry.Currency != model.CurrencyStars {
		t.Errorf("expected XTR entry, got %s", entry.Currency)
	}
	u, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if u.BalanceStars != 200-94 {
		t.Errorf("expected 106 stars left, got %d", u.BalanceStars)
	}
	if u.TotalSpentStars != 94 {
		t.Errorf("expected 94 stars spent, got %d", u.TotalSpentStars)
	}
}

func TestLedger_Refund_ReversesCharge(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "500", 0)

	ok, _, entry, err := d.uc.Charge(ctx, 100, "badge_urgent", model.CurrencyRub, nil, 1, nil)
	if err != nil || !ok {
		t.Fatalf("charge failed: ok=%v err=%v", ok, err)
	}

	ok, _, refund, err := d.uc.Refund(ctx, 100, entry.ID, "тест")
	if err != nil || !ok {
		t.Fatalf("refund failed: ok=%v err=%v", ok, err)
	}
	if refund.Type != model.TransactionRefund {
		t.Errorf("expected refund type, got %s", refund.Type)
	}

	u, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if !u.BalanceRub.Equal(decimal.RequireFromString("500")) {
		t.Errorf("expected pre-charge balance restored, got %s", u.BalanceRub)
	}
	if !u.TotalSpentRub.IsZero() {
		t.Errorf("expected total spent reset, got %s", u.TotalSpentRub)
	}

	purchase, _ := d.purchases.FindByTransactionID(ctx, nil, entry.ID)
	if purchase.IsActive {
		t.Error("expected linked purchase deactivated")
	}
}

func TestLedger_Refund_OnlyPurchases(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "0", 0)

	entry, err := d.uc.Deposit(ctx, 100, decimal.NewFromInt(100), model.CurrencyRub, nil, "")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	ok, msg, _, err := d.uc.Refund(ctx, 100, entry.ID, "")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if ok {
		t.Error("expected refund of a deposit to be rejected")
	}
	if msg != "Можно вернуть только покупки" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestLedger_Subscribe_ExtendsAdditively(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "1000", 0)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.uc.now = func() time.Time { return base }

	ok, _, _, err := d.uc.Subscribe(ctx, 100, model.TierPro, model.CurrencyRub)
	if err != nil || !ok {
		t.Fatalf("subscribe failed: ok=%v err=%v", ok, err)
	}
	u, _ := d.users.FindByTelegramID(ctx, nil, 100)
	if u.AccountTier != model.TierPro {
		t.Errorf("expected pro tier, got %s", u.AccountTier)
	}
	first := *u.AccountUntil
	if !first.Equal(base.AddDate(0, 0, 30)) {
		t.Errorf("expected until %v, got %v", base.AddDate(0, 0, 30), first)
	}

	// Second purchase while still active stacks on top of the current expiry.
	ok, _, _, err = d.uc.Subscribe(ctx, 100, model.TierPro, model.CurrencyRub)
	if err != nil || !ok {
		t.Fatalf("second subscribe failed: ok=%v err=%v", ok, err)
	}
	u, _ = d.users.FindByTelegramID(ctx, nil, 100)
	if !u.AccountUntil.Equal(first.AddDate(0, 0, 30)) {
		t.Errorf("expected stacked expiry %v, got %v", first.AddDate(0, 0, 30), *u.AccountUntil)
	}

	if !u.BalanceRub.Equal(decimal.RequireFromString("402")) {
		t.Errorf("expected balance 402 after two PRO purchases, got %s", u.BalanceRub)
	}
}

func TestLedger_Subscribe_FreeTierRejected(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "1000", 0)

	ok, msg, _, err := d.uc.Subscribe(ctx, 100, model.TierFree, model.CurrencyRub)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if ok || msg != "Этот тип аккаунта бесплатный" {
		t.Errorf("expected free tier rejection, got ok=%v msg=%q", ok, msg)
	}
}

func TestLedger_GetTransactions_NewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	d := newLedgerDeps()
	seedUser(t, d.users, 100, "500", 0)

	_, _ = d.uc.Deposit(ctx, 100, decimal.NewFromInt(10), model.CurrencyRub, nil, "first")
	_, _, _, _ = d.uc.Charge(ctx, 100, "badge_urgent", model.CurrencyRub, nil, 1, nil)
	_, _ = d.uc.Deposit(ctx, 100, decimal.NewFromInt(20), model.CurrencyRub, nil, "second")

	all, err := d.uc.GetTransactions(ctx, 100, 10, 0, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Description != "second" {
		t.Errorf("expected newest first, got %q", all[0].Description)
	}

	deposits := model.TransactionDeposit
	onlyDeposits, _ := d.uc.GetTransactions(ctx, 100, 10, 0, &deposits)
	if len(onlyDeposits) != 2 {
		t.Errorf("expected 2 deposits, got %d", len(onlyDeposits))
	}
}
