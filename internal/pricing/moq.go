package pricing

import "fmt"

// GlobalMOQ is the store-wide minimum order quantity setting. It only
// applies when Active; line items may carry a per-product override that
// always wins.
type GlobalMOQ struct {
	Active bool
	MinQty int
}

// BelowMinimumError reports a quantity below the effective minimum, carrying
// the exact required minimum so the caller can explain the rejection.
type BelowMinimumError struct {
	Required int
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("pricing: quantity below minimum order quantity of %d", e.Required)
}

// EffectiveMOQ resolves the minimum purchasable quantity for the item:
// the per-product override if present, else the global setting when active,
// else one.
func EffectiveMOQ(item LineItem, global GlobalMOQ) int {
	if item.MOQOverride != nil {
		return *item.MOQOverride
	}
	if global.Active && global.MinQty > 1 {
		return global.MinQty
	}
	return 1
}

// ValidateQuantity checks the item's quantity against the effective minimum.
// The rule applies independently per line item, never to the cart aggregate.
func ValidateQuantity(item LineItem, required int) error {
	if item.Qty < required {
		return &BelowMinimumError{Required: required}
	}
	return nil
}

// ClampDelta applies a quantity change request. A change that would drop the
// quantity below the effective minimum is rejected, not floored: silently
// correcting would surprise the user with a price they did not ask for.
func ClampDelta(current, delta, required int) (int, error) {
	next := current + delta
	if next < required {
		return 0, &BelowMinimumError{Required: required}
	}
	return next, nil
}
