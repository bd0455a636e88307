package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

func testItem(t *testing.T, qty int, basePrice string) LineItem {
	t.Helper()
	item, err := NewLineItem(uuid.New(), uuid.New(), nil, nil, qty, dec(t, basePrice), nil)
	if err != nil {
		t.Fatalf("build line item: %v", err)
	}
	return item
}

func saleFor(t *testing.T, productID uuid.UUID, pct string, now time.Time) FlashSale {
	t.Helper()
	sale, err := NewFlashSale(uuid.New(), now.Add(-time.Hour), now.Add(time.Hour), dec(t, pct), nil, 0, true, []uuid.UUID{productID})
	if err != nil {
		t.Fatalf("build flash sale: %v", err)
	}
	return sale
}

func TestResolveSlabPrice(t *testing.T) {
	now := time.Now()
	item := testItem(t, 12, "500")
	slabs := []Slab{{MinQty: 10, UnitPrice: dec(t, "450")}}

	priced := ResolveUnitPrice(item, slabs, nil, now)
	if priced.Source != SourceSlab {
		t.Fatalf("expected SLAB source, got %s", priced.Source)
	}
	if !priced.UnitPrice.Equal(dec(t, "450")) {
		t.Fatalf("expected unit price 450, got %s", priced.UnitPrice)
	}
	if !priced.LineSubtotal.Equal(dec(t, "5400")) {
		t.Fatalf("expected line subtotal 5400, got %s", priced.LineSubtotal)
	}
}

func TestResolveFlashSaleBeatsSlab(t *testing.T) {
	now := time.Now()
	item := testItem(t, 12, "500")
	slabs := []Slab{{MinQty: 10, UnitPrice: dec(t, "450")}}
	sale := saleFor(t, item.ProductID, "20", now)

	priced := ResolveUnitPrice(item, slabs, &sale, now)
	if priced.Source != SourceFlashSale {
		t.Fatalf("expected FLASH_SALE source, got %s", priced.Source)
	}
	if !priced.UnitPrice.Equal(dec(t, "400")) {
		t.Fatalf("expected unit price 400, got %s", priced.UnitPrice)
	}
}

func TestResolvePicksHighestSatisfiedSlab(t *testing.T) {
	now := time.Now()
	item := testItem(t, 25, "100")
	slabs := []Slab{
		{MinQty: 10, UnitPrice: dec(t, "90")},
		{MinQty: 20, UnitPrice: dec(t, "80")},
		{MinQty: 50, UnitPrice: dec(t, "70")},
	}

	priced := ResolveUnitPrice(item, slabs, nil, now)
	if !priced.UnitPrice.Equal(dec(t, "80")) {
		t.Fatalf("expected unit price 80, got %s", priced.UnitPrice)
	}
}

func TestResolveDefaultWhenNoSlabMatches(t *testing.T) {
	now := time.Now()
	item := testItem(t, 3, "500")
	slabs := []Slab{{MinQty: 10, UnitPrice: dec(t, "450")}}

	priced := ResolveUnitPrice(item, slabs, nil, now)
	if priced.Source != SourceDefault {
		t.Fatalf("expected DEFAULT source, got %s", priced.Source)
	}
	if !priced.UnitPrice.Equal(dec(t, "500")) {
		t.Fatalf("expected base price 500, got %s", priced.UnitPrice)
	}
}

func TestResolveSoldOutSaleFallsThroughToSlab(t *testing.T) {
	now := time.Now()
	item := testItem(t, 12, "500")
	slabs := []Slab{{MinQty: 10, UnitPrice: dec(t, "450")}}
	maxQty := 100
	sale, err := NewFlashSale(uuid.New(), now.Add(-time.Hour), now.Add(time.Hour), dec(t, "20"), &maxQty, 100, true, []uuid.UUID{item.ProductID})
	if err != nil {
		t.Fatalf("build flash sale: %v", err)
	}

	priced := ResolveUnitPrice(item, slabs, &sale, now)
	if priced.Source != SourceSlab {
		t.Fatalf("expected sold-out sale to fall through to SLAB, got %s", priced.Source)
	}
}

func TestFlashSaleWindowInclusive(t *testing.T) {
	now := time.Now()
	productID := uuid.New()
	sale, err := NewFlashSale(uuid.New(), now, now.Add(time.Hour), dec(t, "10"), nil, 0, true, []uuid.UUID{productID})
	if err != nil {
		t.Fatalf("build flash sale: %v", err)
	}

	if !sale.EffectiveFor(productID, now) {
		t.Fatal("sale should be effective at its exact start instant")
	}
	if !sale.EffectiveFor(productID, now.Add(time.Hour)) {
		t.Fatal("sale should be effective at its exact end instant")
	}
	if sale.EffectiveFor(productID, now.Add(time.Hour+time.Second)) {
		t.Fatal("sale should not be effective after its end")
	}
	if sale.EffectiveFor(uuid.New(), now) {
		t.Fatal("sale should not cover products outside its scope")
	}
}

func TestSalePriceRoundsHalfUp(t *testing.T) {
	now := time.Now()
	item := testItem(t, 1, "19.99")
	sale := saleFor(t, item.ProductID, "15", now)

	// 19.99 * 0.85 = 16.9915 -> 16.99
	priced := ResolveUnitPrice(item, nil, &sale, now)
	if !priced.UnitPrice.Equal(dec(t, "16.99")) {
		t.Fatalf("expected 16.99, got %s", priced.UnitPrice)
	}

	item2 := testItem(t, 1, "33.33")
	sale2 := saleFor(t, item2.ProductID, "25", now)
	// 33.33 * 0.75 = 24.9975 -> 25.00
	priced2 := ResolveUnitPrice(item2, nil, &sale2, now)
	if !priced2.UnitPrice.Equal(dec(t, "25")) {
		t.Fatalf("expected 25.00, got %s", priced2.UnitPrice)
	}
}

func TestNewLineItemRejectsMalformedInput(t *testing.T) {
	if _, err := NewLineItem(uuid.New(), uuid.New(), nil, nil, 0, dec(t, "10"), nil); err == nil {
		t.Fatal("expected error for non-positive quantity")
	}
	if _, err := NewLineItem(uuid.New(), uuid.New(), nil, nil, 1, dec(t, "-1"), nil); err == nil {
		t.Fatal("expected error for negative base price")
	}
	zero := 0
	if _, err := NewLineItem(uuid.New(), uuid.New(), nil, nil, 1, dec(t, "10"), &zero); err == nil {
		t.Fatal("expected error for moq override below 1")
	}
}

func TestNewFlashSaleRejectsBadWindow(t *testing.T) {
	now := time.Now()
	if _, err := NewFlashSale(uuid.New(), now, now, dec(t, "10"), nil, 0, true, nil); err == nil {
		t.Fatal("expected error when start does not precede end")
	}
	if _, err := NewFlashSale(uuid.New(), now, now.Add(time.Hour), dec(t, "101"), nil, 0, true, nil); err == nil {
		t.Fatal("expected error for discount above 100")
	}
}
