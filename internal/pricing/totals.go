package pricing

import "github.com/shopspring/decimal"

// minimumPayable is the smallest chargeable total accepted downstream by the
// payment gateway, expressed in store currency.
var minimumPayable = decimal.NewFromInt(1)

// ShippingRule computes the shipping cost for the discounted goods amount.
// The aggregator treats it as an opaque injected policy.
type ShippingRule func(amount decimal.Decimal) decimal.Decimal

// FlatWithFreeThreshold ships free at or above the threshold and charges the
// flat fee otherwise.
func FlatWithFreeThreshold(freeAbove, flatFee decimal.Decimal) ShippingRule {
	return func(amount decimal.Decimal) decimal.Decimal {
		if amount.GreaterThanOrEqual(freeAbove) {
			return decimal.Zero
		}
		return flatFee
	}
}

// CartTotals is the fully priced cart handed to presentation and checkout.
// All numeric fields are always computed; RedactPrices only signals that the
// presentation layer must not render them for this session.
type CartTotals struct {
	Items               []PricedItem
	Subtotal            decimal.Decimal
	Discount            decimal.Decimal
	Shipping            decimal.Decimal
	Total               decimal.Decimal
	RedactPrices        bool
	BelowMinimumPayable bool
}

// ComputeTotals aggregates line subtotals, the coupon discount, and the
// shipping rule into a final total. The subtotal spans all items, not only
// coupon-matched ones; the total never goes negative.
func ComputeTotals(items []PricedItem, discount decimal.Decimal, rule ShippingRule, authenticated, hidePricesForGuests bool) CartTotals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineSubtotal)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	goods := subtotal.Sub(discount)
	shipping := decimal.Zero
	if rule != nil {
		shipping = rule(goods)
	}
	total := goods.Add(shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return CartTotals{
		Items:               items,
		Subtotal:            subtotal,
		Discount:            discount,
		Shipping:            shipping,
		Total:               total,
		RedactPrices:        !authenticated && hidePricesForGuests,
		BelowMinimumPayable: total.LessThan(minimumPayable),
	}
}
