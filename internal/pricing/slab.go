package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidSlab is wrapped by all slab construction failures.
var ErrInvalidSlab = errors.New("pricing: invalid slab")

// Slab is one bulk discount tier attached to a product variant.
type Slab struct {
	MinQty    int
	UnitPrice decimal.Decimal
}

// NewSlab validates tier thresholds at construction.
func NewSlab(minQty int, unitPrice decimal.Decimal) (Slab, error) {
	if minQty < 1 {
		return Slab{}, fmt.Errorf("min qty must be at least 1, got %d: %w", minQty, ErrInvalidSlab)
	}
	if unitPrice.IsNegative() {
		return Slab{}, fmt.Errorf("unit price must not be negative, got %s: %w", unitPrice, ErrInvalidSlab)
	}
	return Slab{MinQty: minQty, UnitPrice: unitPrice}, nil
}

// BestSlab selects the slab with the greatest MinQty that the quantity still
// satisfies. The input does not need to be sorted.
func BestSlab(slabs []Slab, qty int) (Slab, bool) {
	var (
		best  Slab
		found bool
	)
	for _, s := range slabs {
		if s.MinQty > qty {
			continue
		}
		if !found || s.MinQty > best.MinQty {
			best = s
			found = true
		}
	}
	return best, found
}
