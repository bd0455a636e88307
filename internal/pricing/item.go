// Package pricing implements the order pricing pipeline: per-item unit price
// resolution, minimum order quantity enforcement, and cart totals aggregation.
// Every function is a pure computation over immutable snapshots; persistence
// of counters such as flash sale sold counts belongs to checkout.
package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSource records which mechanism produced the resolved unit price.
type PriceSource string

const (
	// SourceDefault means the base catalog price was used.
	SourceDefault PriceSource = "DEFAULT"
	// SourceSlab means a bulk pricing slab matched the quantity.
	SourceSlab PriceSource = "SLAB"
	// SourceFlashSale means an effective flash sale overrode everything else.
	SourceFlashSale PriceSource = "FLASH_SALE"
)

// ErrInvalidLineItem is wrapped by all line item construction failures.
var ErrInvalidLineItem = errors.New("pricing: invalid line item")

// LineItem is an immutable snapshot of one cart line handed to the pipeline.
type LineItem struct {
	VariantID   uuid.UUID
	ProductID   uuid.UUID
	CategoryIDs []uuid.UUID
	BrandID     *uuid.UUID
	Qty         int
	BasePrice   decimal.Decimal
	MOQOverride *int
}

// NewLineItem validates the snapshot at construction so the pricing
// algorithms stay total functions over well-formed input.
func NewLineItem(variantID, productID uuid.UUID, categoryIDs []uuid.UUID, brandID *uuid.UUID, qty int, basePrice decimal.Decimal, moqOverride *int) (LineItem, error) {
	if qty <= 0 {
		return LineItem{}, fmt.Errorf("qty must be a positive whole number, got %d: %w", qty, ErrInvalidLineItem)
	}
	if basePrice.IsNegative() {
		return LineItem{}, fmt.Errorf("base price must not be negative, got %s: %w", basePrice, ErrInvalidLineItem)
	}
	if moqOverride != nil && *moqOverride < 1 {
		return LineItem{}, fmt.Errorf("moq override must be at least 1, got %d: %w", *moqOverride, ErrInvalidLineItem)
	}
	return LineItem{
		VariantID:   variantID,
		ProductID:   productID,
		CategoryIDs: categoryIDs,
		BrandID:     brandID,
		Qty:         qty,
		BasePrice:   basePrice,
		MOQOverride: moqOverride,
	}, nil
}

// PricedItem is a line item with its authoritative unit price and provenance.
type PricedItem struct {
	Item         LineItem
	UnitPrice    decimal.Decimal
	Source       PriceSource
	LineSubtotal decimal.Decimal
}
