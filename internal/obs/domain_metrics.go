package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts cart quote computations by outcome.
	QuoteTotal *prometheus.CounterVec
	// QuoteDuration records quote pipeline latency in milliseconds.
	QuoteDuration prometheus.Histogram
	// PriceSourceTotal counts resolved line items by price provenance.
	PriceSourceTotal *prometheus.CounterVec
	// CouponEvalTotal counts coupon evaluations by result (applied or the
	// rejection reason).
	CouponEvalTotal *prometheus.CounterVec
	// CouponCappedTotal counts evaluations where the 90% discount cap bound.
	CouponCappedTotal prometheus.Counter
	// MOQRejectionTotal counts quantity mutations rejected by the MOQ gate.
	MOQRejectionTotal prometheus.Counter
	// CheckoutTotal counts order placement attempts by result.
	CheckoutTotal *prometheus.CounterVec
	// FlashSaleSweepTotal counts worker sweep runs by result.
	FlashSaleSweepTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain Prometheus
// collectors. Safe to call more than once.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_quote_total",
			Help:      "Count of cart quote computations by outcome.",
		}, []string{"result"})
		QuoteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_quote_duration_ms",
			Help:      "Latency of the quote pipeline in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		})
		PriceSourceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_source_total",
			Help:      "Count of resolved line items by price source.",
		}, []string{"source"})
		CouponEvalTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_eval_total",
			Help:      "Count of coupon evaluations by result.",
		}, []string{"result"})
		CouponCappedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_capped_total",
			Help:      "Count of coupon evaluations clamped by the discount cap.",
		})
		MOQRejectionTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moq_rejection_total",
			Help:      "Count of quantity mutations rejected below the minimum order quantity.",
		})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of order placement attempts by result.",
		}, []string{"result"})
		FlashSaleSweepTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_sale_sweep_total",
			Help:      "Count of flash sale sweep runs by result.",
		}, []string{"result"})

		for _, c := range []prometheus.Collector{
			QuoteTotal, QuoteDuration, PriceSourceTotal, CouponEvalTotal,
			CouponCappedTotal, MOQRejectionTotal, CheckoutTotal, FlashSaleSweepTotal,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}
