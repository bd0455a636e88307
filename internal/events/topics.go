package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated     = "order.created"
	TopicCouponRedeemed   = "coupon.redeemed"
	TopicFlashSaleSoldOut = "flashsale.sold_out"
	TopicSettingsUpdated  = "settings.updated"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicCouponRedeemed,
		TopicFlashSaleSoldOut,
		TopicSettingsUpdated,
	}
}
