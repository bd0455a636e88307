package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pricedItems(t *testing.T, subtotals ...string) []PricedItem {
	t.Helper()
	items := make([]PricedItem, 0, len(subtotals))
	for _, s := range subtotals {
		sub := dec(t, s)
		items = append(items, PricedItem{
			Item:         testItem(t, 1, s),
			UnitPrice:    sub,
			Source:       SourceDefault,
			LineSubtotal: sub,
		})
	}
	return items
}

func TestComputeTotalsAggregates(t *testing.T) {
	items := pricedItems(t, "300", "700")
	rule := FlatWithFreeThreshold(dec(t, "500"), dec(t, "25"))

	totals := ComputeTotals(items, dec(t, "100"), rule, true, false)
	if !totals.Subtotal.Equal(dec(t, "1000")) {
		t.Fatalf("expected subtotal 1000, got %s", totals.Subtotal)
	}
	if !totals.Shipping.Equal(decimal.Zero) {
		t.Fatalf("expected free shipping above threshold, got %s", totals.Shipping)
	}
	if !totals.Total.Equal(dec(t, "900")) {
		t.Fatalf("expected total 900, got %s", totals.Total)
	}
	if totals.RedactPrices {
		t.Fatal("authenticated session must not be redacted")
	}
}

func TestComputeTotalsShippingBelowThreshold(t *testing.T) {
	items := pricedItems(t, "100")
	rule := FlatWithFreeThreshold(dec(t, "500"), dec(t, "25"))

	totals := ComputeTotals(items, decimal.Zero, rule, true, false)
	if !totals.Shipping.Equal(dec(t, "25")) {
		t.Fatalf("expected flat shipping 25, got %s", totals.Shipping)
	}
	if !totals.Total.Equal(dec(t, "125")) {
		t.Fatalf("expected total 125, got %s", totals.Total)
	}
}

func TestComputeTotalsNeverNegative(t *testing.T) {
	items := pricedItems(t, "50")

	totals := ComputeTotals(items, dec(t, "80"), nil, true, false)
	if totals.Total.IsNegative() {
		t.Fatalf("total must never be negative, got %s", totals.Total)
	}
	if !totals.Total.Equal(decimal.Zero) {
		t.Fatalf("expected total clamped to 0, got %s", totals.Total)
	}
	if !totals.BelowMinimumPayable {
		t.Fatal("zero total must flag below minimum payable")
	}
}

func TestComputeTotalsBelowMinimumPayableFlag(t *testing.T) {
	items := pricedItems(t, "0.50")
	totals := ComputeTotals(items, decimal.Zero, nil, true, false)
	if !totals.BelowMinimumPayable {
		t.Fatal("total under 1 must flag below minimum payable")
	}

	totals = ComputeTotals(pricedItems(t, "1"), decimal.Zero, nil, true, false)
	if totals.BelowMinimumPayable {
		t.Fatal("total of exactly 1 must not flag below minimum payable")
	}
}

func TestComputeTotalsGuestRedaction(t *testing.T) {
	items := pricedItems(t, "400")

	totals := ComputeTotals(items, decimal.Zero, nil, false, true)
	if !totals.RedactPrices {
		t.Fatal("guest with hidden prices must be redacted")
	}
	// Redaction is a display concern: every numeric field is still computed.
	if !totals.Total.Equal(dec(t, "400")) {
		t.Fatalf("redacted result must still carry the correct total, got %s", totals.Total)
	}

	totals = ComputeTotals(items, decimal.Zero, nil, false, false)
	if totals.RedactPrices {
		t.Fatal("guest must not be redacted when the toggle is off")
	}
}

func TestComputeTotalsIdempotent(t *testing.T) {
	now := time.Now()
	item := testItem(t, 4, "19.99")
	sale := saleFor(t, item.ProductID, "10", now)
	priced := []PricedItem{ResolveUnitPrice(item, nil, &sale, now)}
	rule := FlatWithFreeThreshold(dec(t, "100"), dec(t, "9.99"))

	first := ComputeTotals(priced, dec(t, "5"), rule, true, false)
	second := ComputeTotals(priced, dec(t, "5"), rule, true, false)
	if !first.Total.Equal(second.Total) || !first.Shipping.Equal(second.Shipping) || !first.Subtotal.Equal(second.Subtotal) {
		t.Fatalf("identical inputs must yield identical totals: %v vs %v", first, second)
	}
}
