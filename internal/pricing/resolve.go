package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolveUnitPrice picks the single authoritative unit price for the line
// item. Priority order, highest wins: effective flash sale, then the best
// matching slab, then the base price. Flash sale and slab discounts are
// mutually exclusive and never stack: a flash sale price is never also
// slab-adjusted.
func ResolveUnitPrice(item LineItem, slabs []Slab, sale *FlashSale, now time.Time) PricedItem {
	unit := item.BasePrice
	source := SourceDefault

	switch {
	case sale != nil && sale.EffectiveFor(item.ProductID, now):
		unit = sale.SalePrice(item.BasePrice)
		source = SourceFlashSale
	default:
		if slab, ok := BestSlab(slabs, item.Qty); ok {
			unit = slab.UnitPrice
			source = SourceSlab
		}
	}

	return PricedItem{
		Item:         item,
		UnitPrice:    unit,
		Source:       source,
		LineSubtotal: unit.Mul(decimal.NewFromInt(int64(item.Qty))),
	}
}
