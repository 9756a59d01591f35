package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		adsExpiredTotal,
		adsBoostedTotal,
		adsDeletedTotal,
		adsExtendedTotal,
		expiryNoticesTotal,
	)
}

var (
	adsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ads_expired_total",
			Help: "Total number of ads archived by the expiry sweep.",
		},
	)

	adsBoostedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ads_boosted_total",
			Help: "Total number of automatic ad boosts performed.",
		},
	)

	adsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ads_deleted_total",
			Help: "Total number of archived ads moved to deleted by retention.",
		},
	)

	adsExtendedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ads_extended_total",
			Help: "Total number of ad publication extensions.",
		},
	)

	expiryNoticesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiry_notices_total",
			Help: "Expiry warning messages sent, by notice window.",
		},
		[]string{"window"}, // 'day_3', 'day_1', 'hour_1'
	)
)

func AddAdsExpired(count int)  { adsExpiredTotal.Add(float64(count)) }
func AddAdsBoosted(count int)  { adsBoostedTotal.Add(float64(count)) }
func AddAdsDeleted(count int)  { adsDeletedTotal.Add(float64(count)) }
func IncAdExtended()           { adsExtendedTotal.Inc() }
func IncExpiryNotice(w string) { expiryNoticesTotal.WithLabelValues(norm(w)).Inc() }
