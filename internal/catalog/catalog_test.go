package catalog

import (
	"testing"

	"telegram-classifieds-bot/internal/domain/model"
)

func TestDefault_ServiceTableIsConsistent(t *testing.T) {
	cat := Default()

	if len(cat.Services) == 0 {
		t.Fatal("catalog has no services")
	}
	for code, svc := range cat.Services {
		if svc.Code != code {
			t.Errorf("service %q: Code field is %q", code, svc.Code)
		}
		if svc.Name == "" {
			t.Errorf("service %q: empty name", code)
		}
		if svc.PriceRub.Sign() <= 0 {
			t.Errorf("service %q: non-positive price %s", code, svc.PriceRub)
		}
		if svc.Effect == model.EffectAdsPack && svc.AdsCount <= 0 {
			t.Errorf("service %q: ads pack without a count", code)
		}
		if svc.Effect == model.EffectAutoBoost && (svc.BoostCount <= 0 || svc.BoostIntervalDays <= 0) {
			t.Errorf("service %q: boost without count or interval", code)
		}
	}
}

func TestDefault_TiersCoverAllValues(t *testing.T) {
	cat := Default()

	for _, tier := range []model.Tier{model.TierFree, model.TierPro, model.TierBusiness} {
		acc, ok := cat.Accounts[tier]
		if !ok {
			t.Fatalf("tier %s missing from catalog", tier)
		}
		if acc.Limits.MaxActiveAds <= 0 || acc.Limits.AdDurationDays <= 0 {
			t.Errorf("tier %s: zero limits %+v", tier, acc.Limits)
		}
	}

	free := cat.Limits(model.TierFree)
	pro := cat.Limits(model.TierPro)
	if pro.MaxActiveAds <= free.MaxActiveAds {
		t.Error("pro tier must allow more active ads than free")
	}
	if cat.Accounts[model.TierFree].PriceRub.Sign() != 0 {
		t.Error("free tier must cost nothing")
	}
	if cat.Accounts[model.TierPro].DurationDays <= 0 {
		t.Error("paid tier needs a duration")
	}
}

func TestAccount_FallsBackToFree(t *testing.T) {
	cat := Default()
	acc := cat.Account(model.Tier("platinum"))
	if acc.Tier != model.TierFree {
		t.Errorf("unknown tier resolved to %s, want free", acc.Tier)
	}
}

func TestService_UnknownCode(t *testing.T) {
	cat := Default()
	if _, err := cat.Service("no_such_code"); err == nil {
		t.Fatal("expected error for unknown service code")
	}
}

func TestDefault_StarsAndRepublishConstants(t *testing.T) {
	cat := Default()

	// star_rub at the fallback USD rate must stay above the floor.
	starRub := cat.Stars.FallbackUsdRub.Mul(cat.Stars.UsdMultiplier).Mul(cat.Stars.Discount)
	if starRub.LessThan(cat.Stars.MinRateRub) {
		t.Errorf("fallback star rate %s is below the floor %s", starRub, cat.Stars.MinRateRub)
	}

	if !cat.Republish.FreeFirstTime {
		t.Error("first republish must be free")
	}
	if cat.Republish.CooldownHours <= 0 || cat.Republish.PriceRub.Sign() <= 0 || cat.Republish.PriceStars <= 0 {
		t.Errorf("republish config incomplete: %+v", cat.Republish)
	}

	if len(cat.Lifecycle.ExpiryWarnDays) == 0 || cat.Lifecycle.SweepBatchSize <= 0 {
		t.Errorf("lifecycle config incomplete: %+v", cat.Lifecycle)
	}
	for i := 1; i < len(cat.Lifecycle.ExpiryWarnDays); i++ {
		if cat.Lifecycle.ExpiryWarnDays[i] >= cat.Lifecycle.ExpiryWarnDays[i-1] {
			t.Error("warn days must be strictly descending so notices fire in order")
		}
	}
}
