package model

// Tier is the account subscription level. An expired paid tier behaves as
// TierFree (see User.EffectiveTier) without a database write.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierBusiness:
		return true
	}
	return false
}

// TierLimits are the quota knobs attached to an account tier.
type TierLimits struct {
	MaxActiveAds          int
	MaxPublicationsPer30d int
	AdDurationDays        int
	MaxRegionsPerAd       int
	MaxLinksPerAd         int
	MaxPhotosPerAd        int
	VideoAllowed          bool
}
