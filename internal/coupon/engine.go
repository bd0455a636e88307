// Package coupon implements promotional code evaluation against a priced
// cart, plus the persistence and HTTP surfaces around it. Evaluate is pure:
// it never commits usage, so repeated previews cannot double-increment.
package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/pricing"
)

var (
	// ErrNotFound is returned when no coupon matches the submitted code.
	ErrNotFound = errors.New("coupon: not found")
	// ErrInactive is returned when the coupon has been disabled by an admin.
	ErrInactive = errors.New("coupon: not active")
	// ErrNotYetValid is returned before the coupon's start date.
	ErrNotYetValid = errors.New("coupon: not yet valid")
	// ErrExpired is returned after the coupon's end date.
	ErrExpired = errors.New("coupon: expired")
	// ErrUsesExhausted is returned when the global usage quota is spent.
	ErrUsesExhausted = errors.New("coupon: usage limit reached")
	// ErrNoEligibleItems is returned when the scope matches nothing in the
	// cart. Distinct from ErrNotFound so the storefront can render
	// different guidance.
	ErrNoEligibleItems = errors.New("coupon: no eligible items in cart")
	// ErrInvalidCoupon is wrapped by all coupon construction failures.
	ErrInvalidCoupon = errors.New("coupon: invalid coupon")
)

// BelowMinOrderError reports an eligible subtotal under the coupon's minimum
// order amount, carrying both figures for the user-facing message.
type BelowMinOrderError struct {
	Required decimal.Decimal
	Eligible decimal.Decimal
}

func (e *BelowMinOrderError) Error() string {
	return fmt.Sprintf("coupon: eligible subtotal %s below minimum order amount %s", e.Eligible, e.Required)
}

// Kind discriminates how the discount value is interpreted.
type Kind string

const (
	// KindPercentage discounts a percentage of the eligible subtotal.
	KindPercentage Kind = "PERCENTAGE"
	// KindFixedAmount discounts a fixed amount, clamped to the eligible
	// subtotal.
	KindFixedAmount Kind = "FIXED_AMOUNT"
)

var (
	hundred = decimal.NewFromInt(100)
	// capRatio is the global discount cap: no coupon may ever zero out the
	// eligible subtotal, both to stay above payment gateway minimums and as
	// fraud protection. One source of truth; the storefront and admin UIs
	// only render what Evaluate returns.
	capRatio = decimal.RequireFromString("0.90")
)

// Coupon is an immutable snapshot of a promotional code. Codes are
// case-insensitive; CanonicalCode produces the stored uppercase form.
type Coupon struct {
	ID             uuid.UUID        `json:"id"`
	Code           string           `json:"code"`
	Kind           Kind             `json:"kind"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount,omitempty"`
	MaxUses        *int             `json:"maxUses,omitempty"`
	UsedCount      int              `json:"usedCount"`
	StartsAt       time.Time        `json:"startsAt"`
	EndsAt         *time.Time       `json:"endsAt,omitempty"`
	Active         bool             `json:"active"`
	ProductIDs     []uuid.UUID      `json:"productIds,omitempty"`
	CategoryIDs    []uuid.UUID      `json:"categoryIds,omitempty"`
	BrandIDs       []uuid.UUID      `json:"brandIds,omitempty"`
}

// CanonicalCode uppercases and trims a submitted code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate rejects malformed coupons at the boundary so Evaluate stays a
// total function.
func (c Coupon) Validate() error {
	if CanonicalCode(c.Code) == "" {
		return fmt.Errorf("code is required: %w", ErrInvalidCoupon)
	}
	switch c.Kind {
	case KindPercentage:
		if c.Value.IsNegative() || c.Value.GreaterThan(hundred) {
			return fmt.Errorf("percentage value must be within 0-100, got %s: %w", c.Value, ErrInvalidCoupon)
		}
	case KindFixedAmount:
		if c.Value.IsNegative() {
			return fmt.Errorf("fixed amount must not be negative, got %s: %w", c.Value, ErrInvalidCoupon)
		}
	default:
		return fmt.Errorf("unknown kind %q: %w", c.Kind, ErrInvalidCoupon)
	}
	if c.MinOrderAmount != nil && c.MinOrderAmount.IsNegative() {
		return fmt.Errorf("minimum order amount must not be negative: %w", ErrInvalidCoupon)
	}
	if c.MaxUses != nil && *c.MaxUses < 1 {
		return fmt.Errorf("max uses must be at least 1: %w", ErrInvalidCoupon)
	}
	if c.EndsAt != nil && !c.EndsAt.After(c.StartsAt) {
		return fmt.Errorf("end date must be after start date: %w", ErrInvalidCoupon)
	}
	return nil
}

// Scoped reports whether the coupon restricts itself to specific categories,
// products, or brands. An empty scope applies to the whole cart.
func (c Coupon) Scoped() bool {
	return len(c.ProductIDs) > 0 || len(c.CategoryIDs) > 0 || len(c.BrandIDs) > 0
}

// Application is the outcome of a successful evaluation.
type Application struct {
	Code             string
	Discount         decimal.Decimal
	MatchedItems     int
	EligibleSubtotal decimal.Decimal
	Capped           bool
}

// Evaluate determines whether the coupon applies to the priced cart at the
// given instant and how much it discounts. Checks short-circuit in order;
// usage counters are read-only inputs here.
func Evaluate(c Coupon, items []pricing.PricedItem, now time.Time) (Application, error) {
	if !c.Active {
		return Application{}, ErrInactive
	}
	if now.Before(c.StartsAt) {
		return Application{}, ErrNotYetValid
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return Application{}, ErrExpired
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return Application{}, ErrUsesExhausted
	}

	eligible := decimal.Zero
	matched := 0
	for _, it := range items {
		if !c.Scoped() || c.matchesItem(it.Item) {
			eligible = eligible.Add(it.LineSubtotal)
			matched++
		}
	}
	if matched == 0 {
		return Application{}, ErrNoEligibleItems
	}
	if c.MinOrderAmount != nil && eligible.LessThan(*c.MinOrderAmount) {
		return Application{}, &BelowMinOrderError{Required: *c.MinOrderAmount, Eligible: eligible}
	}

	var raw decimal.Decimal
	switch c.Kind {
	case KindPercentage:
		raw = eligible.Mul(c.Value).Div(hundred).Round(2)
	default:
		// A fixed discount never exceeds the eligible subtotal, never goes
		// negative, never rolls over onto other items.
		raw = decimal.Min(c.Value, eligible)
	}

	capped := false
	final := raw
	if limit := eligible.Mul(capRatio).Round(2); final.GreaterThan(limit) {
		final = limit
		capped = true
	}

	return Application{
		Code:             CanonicalCode(c.Code),
		Discount:         final,
		MatchedItems:     matched,
		EligibleSubtotal: eligible,
		Capped:           capped,
	}, nil
}

// matchesItem applies OR semantics across the three scope dimensions: the
// item matches when any of its categories, its product, or its brand appears
// in the coupon's scope sets.
func (c Coupon) matchesItem(item pricing.LineItem) bool {
	for _, id := range c.ProductIDs {
		if id == item.ProductID {
			return true
		}
	}
	for _, scoped := range c.CategoryIDs {
		for _, cat := range item.CategoryIDs {
			if scoped == cat {
				return true
			}
		}
	}
	if item.BrandID != nil {
		for _, id := range c.BrandIDs {
			if id == *item.BrandID {
				return true
			}
		}
	}
	return false
}
