package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidFlashSale is wrapped by all flash sale construction failures.
var ErrInvalidFlashSale = errors.New("pricing: invalid flash sale")

var hundred = decimal.NewFromInt(100)

// FlashSale is a time-boxed percentage discount scoped to specific products
// with an optional total quantity ceiling.
type FlashSale struct {
	ID          uuid.UUID
	StartAt     time.Time
	EndAt       time.Time
	DiscountPct decimal.Decimal
	MaxQty      *int
	SoldCount   int
	Active      bool
	ProductIDs  []uuid.UUID
}

// NewFlashSale validates the sale window and discount at construction.
func NewFlashSale(id uuid.UUID, startAt, endAt time.Time, discountPct decimal.Decimal, maxQty *int, soldCount int, active bool, productIDs []uuid.UUID) (FlashSale, error) {
	if !startAt.Before(endAt) {
		return FlashSale{}, fmt.Errorf("start %s must precede end %s: %w", startAt, endAt, ErrInvalidFlashSale)
	}
	if discountPct.IsNegative() || discountPct.GreaterThan(hundred) {
		return FlashSale{}, fmt.Errorf("discount percent must be within 0-100, got %s: %w", discountPct, ErrInvalidFlashSale)
	}
	if maxQty != nil && *maxQty < 1 {
		return FlashSale{}, fmt.Errorf("max qty must be at least 1, got %d: %w", *maxQty, ErrInvalidFlashSale)
	}
	if soldCount < 0 {
		return FlashSale{}, fmt.Errorf("sold count must not be negative, got %d: %w", soldCount, ErrInvalidFlashSale)
	}
	return FlashSale{
		ID:          id,
		StartAt:     startAt,
		EndAt:       endAt,
		DiscountPct: discountPct,
		MaxQty:      maxQty,
		SoldCount:   soldCount,
		Active:      active,
		ProductIDs:  productIDs,
	}, nil
}

// EffectiveFor reports whether the sale discounts the product at the given
// instant. A sale whose quantity ceiling has been reached is treated as
// ineffective so resolution falls through to slab or default pricing. The
// check is evaluated on every call, never cached.
func (s FlashSale) EffectiveFor(productID uuid.UUID, now time.Time) bool {
	if !s.Active {
		return false
	}
	if now.Before(s.StartAt) || now.After(s.EndAt) {
		return false
	}
	if s.MaxQty != nil && s.SoldCount >= *s.MaxQty {
		return false
	}
	for _, id := range s.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// SalePrice applies the percentage discount to the base price, rounded
// half-up to two decimal places.
func (s FlashSale) SalePrice(basePrice decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(s.DiscountPct).Div(hundred)
	return basePrice.Mul(factor).Round(2)
}
