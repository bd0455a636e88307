package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lapak-id/backend-lapak/internal/catalog"
	"github.com/lapak-id/backend-lapak/internal/common"
	"github.com/lapak-id/backend-lapak/internal/coupon"
	"github.com/lapak-id/backend-lapak/internal/obs"
	"github.com/lapak-id/backend-lapak/internal/pricing"
	"github.com/lapak-id/backend-lapak/internal/settings"
)

// ErrNoIdentity is returned when the request carries neither a user session
// nor a guest cart token.
var ErrNoIdentity = errors.New("cart: no session identity")

// Repo captures the persistence methods the service needs.
type Repo interface {
	GetByID(ctx context.Context, id uuid.UUID) (Cart, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (Cart, error)
	GetActiveByAnon(ctx context.Context, anonID string, now time.Time) (Cart, error)
	Create(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error)
	Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	SetCoupon(ctx context.Context, id uuid.UUID, code *string) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	FindItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (Item, error)
	GetItemByID(ctx context.Context, itemID uuid.UUID) (Item, error)
	InsertItem(ctx context.Context, cartID, variantID uuid.UUID, qty int) (Item, error)
	UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
}

// CatalogProvider assembles the pricing context for a variant.
type CatalogProvider interface {
	PricingContext(ctx context.Context, variantID uuid.UUID) (catalog.PricingContext, error)
}

// SettingsProvider reads the current store settings snapshot.
type SettingsProvider interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// CouponResolver looks up a coupon by code.
type CouponResolver interface {
	Resolve(ctx context.Context, code string) (coupon.Coupon, error)
}

// QuotedItem is one priced cart line plus what the presentation and
// checkout layers need around it: the persistent line id, display fields,
// and the sale that produced the price so checkout can settle its counter.
type QuotedItem struct {
	ItemID uuid.UUID
	SKU    string
	Title  string
	Priced pricing.PricedItem
	Sale   *pricing.FlashSale
}

// MOQViolation records a line whose quantity sits below its effective
// minimum. The gate rejects mutations up front, so a violation only appears
// when the minimum rose after the line was added: an admin raised the global
// setting or put an override on the product.
type MOQViolation struct {
	ItemID   uuid.UUID
	SKU      string
	Qty      int
	Required int
}

// Quote is the live view of a cart: recomputed on every read, never stored.
// CouponRejection is set when an attached coupon no longer passes its gate;
// the totals then carry no discount but the cart keeps the code so the
// shopper can see and remove it. MOQViolations lists lines that fell below
// their minimum since they were added; a quote carrying any cannot settle.
type Quote struct {
	Cart            Cart
	Items           []QuotedItem
	Totals          pricing.CartTotals
	Coupon          *coupon.Application
	CouponRejection error
	MOQViolations   []MOQViolation
}

// Service implements the cart operations over the pricing pipeline.
type Service struct {
	Store    Repo
	Catalog  CatalogProvider
	Settings SettingsProvider
	Coupons  CouponResolver
	TTL      time.Duration
	Now      func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or creates the cart for the session identity on the
// context. A user session wins over a guest token.
func (s *Service) EnsureCart(ctx context.Context) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	now := s.now()
	expires := now.Add(s.ttl())

	if raw, ok := common.UserID(ctx); ok {
		uid, err := uuid.Parse(raw)
		if err != nil {
			return Cart{}, fmt.Errorf("parse user id: %w", err)
		}
		c, err := s.Store.GetActiveByUser(ctx, uid, now)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return s.Store.Create(ctx, &uid, nil, expires)
			}
			return Cart{}, err
		}
		_ = s.Store.Touch(ctx, c.ID, expires)
		return c, nil
	}

	if anonID, ok := common.AnonID(ctx); ok {
		c, err := s.Store.GetActiveByAnon(ctx, anonID, now)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return s.Store.Create(ctx, nil, &anonID, expires)
			}
			return Cart{}, err
		}
		_ = s.Store.Touch(ctx, c.ID, expires)
		return c, nil
	}

	return Cart{}, ErrNoIdentity
}

// AddItem inserts or increments a cart line. The resulting quantity passes
// the minimum order quantity gate or the whole mutation is rejected.
func (s *Service) AddItem(ctx context.Context, variantID uuid.UUID, qty int) (Item, error) {
	if s == nil || s.Store == nil {
		return Item{}, errors.New("cart service not configured")
	}
	if qty <= 0 {
		return Item{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	c, err := s.EnsureCart(ctx)
	if err != nil {
		return Item{}, err
	}

	current := 0
	existing, err := s.Store.FindItemByVariant(ctx, c.ID, variantID)
	switch {
	case err == nil:
		current = existing.Qty
	case errors.Is(err, ErrNotFound):
	default:
		return Item{}, err
	}

	next, err := s.gateQuantity(ctx, variantID, current+qty)
	if err != nil {
		return Item{}, err
	}

	if current > 0 {
		if err := s.Store.UpdateItemQty(ctx, existing.ID, next); err != nil {
			return Item{}, err
		}
		existing.Qty = next
		s.touch(ctx, c.ID)
		return existing, nil
	}
	item, err := s.Store.InsertItem(ctx, c.ID, variantID, next)
	if err != nil {
		return Item{}, err
	}
	s.touch(ctx, c.ID)
	return item, nil
}

// UpdateItemQty sets a line's quantity. Values below the effective minimum
// are rejected, never floored up.
func (s *Service) UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) (Item, error) {
	if s == nil || s.Store == nil {
		return Item{}, errors.New("cart service not configured")
	}
	if qty <= 0 {
		return Item{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	c, item, err := s.ownedItem(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	next, err := s.gateQuantity(ctx, item.VariantID, qty)
	if err != nil {
		return Item{}, err
	}
	if err := s.Store.UpdateItemQty(ctx, item.ID, next); err != nil {
		return Item{}, err
	}
	item.Qty = next
	s.touch(ctx, c.ID)
	return item, nil
}

// RemoveItem deletes a line from the caller's cart.
func (s *Service) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, item, err := s.ownedItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteItem(ctx, c.ID, item.ID); err != nil {
		return err
	}
	s.touch(ctx, c.ID)
	return nil
}

// ApplyCoupon validates the code against the current cart and attaches it.
// The gate reruns on every quote, so a coupon that later expires simply
// stops discounting.
func (s *Service) ApplyCoupon(ctx context.Context, code string) (coupon.Application, error) {
	if s == nil || s.Store == nil || s.Coupons == nil {
		return coupon.Application{}, errors.New("cart service not configured")
	}
	c, err := s.EnsureCart(ctx)
	if err != nil {
		return coupon.Application{}, err
	}
	cpn, err := s.Coupons.Resolve(ctx, code)
	if err != nil {
		return coupon.Application{}, err
	}
	items, err := s.pricedItems(ctx, c)
	if err != nil {
		return coupon.Application{}, err
	}
	app, err := coupon.Evaluate(cpn, items, s.now())
	if err != nil {
		return coupon.Application{}, err
	}
	canonical := coupon.CanonicalCode(code)
	if err := s.Store.SetCoupon(ctx, c.ID, &canonical); err != nil {
		return coupon.Application{}, err
	}
	s.touch(ctx, c.ID)
	return app, nil
}

// RemoveCoupon detaches the applied coupon, if any.
func (s *Service) RemoveCoupon(ctx context.Context) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	c, err := s.EnsureCart(ctx)
	if err != nil {
		return err
	}
	if err := s.Store.SetCoupon(ctx, c.ID, nil); err != nil {
		return err
	}
	s.touch(ctx, c.ID)
	return nil
}

// Quote runs the full pipeline: resolve every line's unit price, evaluate
// the attached coupon, aggregate totals under the current settings.
func (s *Service) Quote(ctx context.Context) (Quote, error) {
	if s == nil || s.Store == nil || s.Catalog == nil || s.Settings == nil {
		return Quote{}, errors.New("cart service not configured")
	}
	started := time.Now()
	q, err := s.quote(ctx)
	if obs.QuoteTotal != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.QuoteTotal.WithLabelValues(result).Inc()
		obs.QuoteDuration.Observe(float64(time.Since(started).Milliseconds()))
	}
	return q, err
}

func (s *Service) quote(ctx context.Context) (Quote, error) {
	c, err := s.EnsureCart(ctx)
	if err != nil {
		return Quote{}, err
	}
	snap, err := s.Settings.Snapshot(ctx)
	if err != nil {
		return Quote{}, err
	}
	quoted, err := s.priceLines(ctx, c)
	if err != nil {
		return Quote{}, err
	}

	priced := make([]pricing.PricedItem, 0, len(quoted))
	for _, qi := range quoted {
		priced = append(priced, qi.Priced)
	}

	out := Quote{Cart: c, Items: quoted}

	// Re-run the gate per line: the minimum may have risen since the line
	// was added and a stored quantity must never settle below it.
	for _, qi := range quoted {
		required := pricing.EffectiveMOQ(qi.Priced.Item, snap.MOQ)
		if err := pricing.ValidateQuantity(qi.Priced.Item, required); err != nil {
			out.MOQViolations = append(out.MOQViolations, MOQViolation{
				ItemID:   qi.ItemID,
				SKU:      qi.SKU,
				Qty:      qi.Priced.Item.Qty,
				Required: required,
			})
			if obs.MOQRejectionTotal != nil {
				obs.MOQRejectionTotal.Inc()
			}
		}
	}

	discount := decimal.Zero
	if c.CouponCode != nil && s.Coupons != nil {
		cpn, err := s.Coupons.Resolve(ctx, *c.CouponCode)
		if err != nil {
			out.CouponRejection = err
		} else if app, err := coupon.Evaluate(cpn, priced, s.now()); err != nil {
			out.CouponRejection = err
		} else {
			out.Coupon = &app
			discount = app.Discount
		}
	}

	out.Totals = pricing.ComputeTotals(priced, discount, snap.ShippingRule(), common.IsAuthenticated(ctx), snap.HidePricesForGuests)
	return out, nil
}

// PricedItems prices the caller's current cart lines. It backs the coupon
// preview endpoint.
func (s *Service) PricedItems(ctx context.Context) ([]pricing.PricedItem, error) {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return nil, errors.New("cart service not configured")
	}
	c, err := s.EnsureCart(ctx)
	if err != nil {
		return nil, err
	}
	return s.pricedItems(ctx, c)
}

func (s *Service) pricedItems(ctx context.Context, c Cart) ([]pricing.PricedItem, error) {
	quoted, err := s.priceLines(ctx, c)
	if err != nil {
		return nil, err
	}
	priced := make([]pricing.PricedItem, 0, len(quoted))
	for _, qi := range quoted {
		priced = append(priced, qi.Priced)
	}
	return priced, nil
}

func (s *Service) priceLines(ctx context.Context, c Cart) ([]QuotedItem, error) {
	rows, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	quoted := make([]QuotedItem, 0, len(rows))
	for _, row := range rows {
		pc, err := s.Catalog.PricingContext(ctx, row.VariantID)
		if err != nil {
			return nil, fmt.Errorf("price variant %s: %w", row.VariantID, err)
		}
		line, err := pc.Variant.LineItem(row.Qty)
		if err != nil {
			return nil, err
		}
		priced := pricing.ResolveUnitPrice(line, pc.Slabs, pc.Sale, now)
		if obs.PriceSourceTotal != nil {
			obs.PriceSourceTotal.WithLabelValues(string(priced.Source)).Inc()
		}
		qi := QuotedItem{
			ItemID: row.ID,
			SKU:    pc.Variant.SKU,
			Title:  pc.Variant.Title,
			Priced: priced,
		}
		if priced.Source == pricing.SourceFlashSale {
			qi.Sale = pc.Sale
		}
		quoted = append(quoted, qi)
	}
	return quoted, nil
}

// gateQuantity runs the MOQ check for the variant at the proposed quantity.
func (s *Service) gateQuantity(ctx context.Context, variantID uuid.UUID, qty int) (int, error) {
	pc, err := s.Catalog.PricingContext(ctx, variantID)
	if err != nil {
		return 0, err
	}
	line, err := pc.Variant.LineItem(qty)
	if err != nil {
		return 0, err
	}
	snap, err := s.Settings.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if err := pricing.ValidateQuantity(line, pricing.EffectiveMOQ(line, snap.MOQ)); err != nil {
		if obs.MOQRejectionTotal != nil {
			obs.MOQRejectionTotal.Inc()
		}
		return 0, err
	}
	return qty, nil
}

// ownedItem loads an item and checks it belongs to the caller's cart.
func (s *Service) ownedItem(ctx context.Context, itemID uuid.UUID) (Cart, Item, error) {
	c, err := s.EnsureCart(ctx)
	if err != nil {
		return Cart{}, Item{}, err
	}
	item, err := s.Store.GetItemByID(ctx, itemID)
	if err != nil {
		return Cart{}, Item{}, err
	}
	if item.CartID != c.ID {
		return Cart{}, Item{}, ErrNotFound
	}
	return c, item, nil
}

func (s *Service) touch(ctx context.Context, cartID uuid.UUID) {
	_ = s.Store.Touch(ctx, cartID, s.now().Add(s.ttl()))
}
